package models

// ContactResponse is the identify endpoint success envelope.
type ContactResponse struct {
	Contact ContactPayload `json:"contact"`
}

// ContactPayload is the wire form of a ClusterView. Slices are always non-nil
// so empty lists serialize as [] rather than null.
type ContactPayload struct {
	PrimaryContactID    string   `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []string `json:"secondaryContactIds"`
}

// NewContactResponse converts a cluster view into its response envelope.
func NewContactResponse(view ClusterView) ContactResponse {
	secondaryIDs := make([]string, 0, len(view.SecondaryContactIDs))
	for _, id := range view.SecondaryContactIDs {
		secondaryIDs = append(secondaryIDs, id.String())
	}
	emails := view.Emails
	if emails == nil {
		emails = []string{}
	}
	phoneNumbers := view.PhoneNumbers
	if phoneNumbers == nil {
		phoneNumbers = []string{}
	}
	return ContactResponse{Contact: ContactPayload{
		PrimaryContactID:    view.PrimaryContactID.String(),
		Emails:              emails,
		PhoneNumbers:        phoneNumbers,
		SecondaryContactIDs: secondaryIDs,
	}}
}
