package models

// ClusterView is the merged view of one identity cluster: the primary contact
// plus every linked secondary. It is derived per request and never stored.
type ClusterView struct {
	PrimaryContactID    ContactID
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIDs []ContactID
}

// BuildClusterView assembles the merged view returned to callers.
//
// created is the secondary written by the current request, nil on the
// new-primary path. secondaries is the store query result for the primary and
// may already include created; the duplicate is skipped so the just-created
// secondary is listed exactly once, first, followed by pre-existing
// secondaries in store order.
//
// Emails and phone numbers follow the same sequence: the primary's value
// first (when present), then each secondary's. Absent values are omitted,
// duplicate values are preserved to match the append-only data model.
func BuildClusterView(primary *Contact, created *Contact, secondaries []*Contact) ClusterView {
	ordered := make([]*Contact, 0, len(secondaries)+1)
	if created != nil {
		ordered = append(ordered, created)
	}
	for _, secondary := range secondaries {
		if created != nil && secondary.ID == created.ID {
			continue
		}
		ordered = append(ordered, secondary)
	}

	view := ClusterView{
		PrimaryContactID:    primary.ID,
		Emails:              make([]string, 0, len(ordered)+1),
		PhoneNumbers:        make([]string, 0, len(ordered)+1),
		SecondaryContactIDs: make([]ContactID, 0, len(ordered)),
	}

	appendValues := func(c *Contact) {
		if c.Email != "" {
			view.Emails = append(view.Emails, c.Email)
		}
		if c.PhoneNumber != "" {
			view.PhoneNumbers = append(view.PhoneNumbers, c.PhoneNumber)
		}
	}

	appendValues(primary)
	for _, secondary := range ordered {
		appendValues(secondary)
		view.SecondaryContactIDs = append(view.SecondaryContactIDs, secondary.ID)
	}
	return view
}
