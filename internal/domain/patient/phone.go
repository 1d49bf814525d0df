package patient

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for numbers written without a country code.
const DefaultPhoneRegion = "CL"

// normalizePhone parses raw and returns it in E.164 form.
func normalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func normalizeContacts(contacts []EmergencyContact) ([]EmergencyContact, error) {
	out := make([]EmergencyContact, len(contacts))
	for i, c := range contacts {
		phone, err := normalizePhone(c.Phone)
		if err != nil {
			return nil, fmt.Errorf("emergency contact %d: %w", i+1, err)
		}
		c.Phone = phone
		out[i] = c
	}
	return out, nil
}
