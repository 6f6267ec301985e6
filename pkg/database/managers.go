package database

import (
	"context"
)

// ListingManager edits listings in the property database.
type ListingManager struct {
	Client *Client
}

// UpdateDraftListingCreationDate backdates a draft listing to date (YYYY-MM-DD).
func (m *ListingManager) UpdateDraftListingCreationDate(ctx context.Context, listingID interface{}, date string) error {
	_, err := m.Client.Update(ctx, "listing", "created_date", date+" 00:00:00",
		"id = ? AND status_code = 'DRAFT'", listingID)
	return err
}

// DraftListingID returns the newest draft listing id of an agent, or nil.
func (m *ListingManager) DraftListingID(ctx context.Context, agentID interface{}) (interface{}, error) {
	return m.Client.ColumnValue(ctx, Select{
		Fields:  "id",
		Table:   "v_listing",
		Where:   "agent_id = ? AND status_code = 'DRAFT'",
		Args:    []interface{}{agentID},
		OrderBy: "id",
		Desc:    true,
		Limit:   1,
	}, "id")
}

// UpdateListingStatus sets the listing status code, e.g. ACT or EXP.
func (m *ListingManager) UpdateListingStatus(ctx context.Context, listingID interface{}, status string) error {
	_, err := m.Client.Update(ctx, "listing", "status_code", status, "id = ?", listingID)
	return err
}

// SeedMessage marks contact history rows created by the suite.
const SeedMessage = "Created for mobile automation"

var enquiryColumns = []string{
	"agent_id", "email", "phone", "message", "enquiry_type", "user_id", "name",
	"message_status", "reference_id", "listing_id", "status_code", "source",
}

// ContactHistoryManager seeds and cleans agent inbox enquiries.
type ContactHistoryManager struct {
	Client *Client
}

// InsertListingEnquiry adds an enquiry for agentID. A nil listingID seeds a
// general enquiry (listing "0").
func (m *ContactHistoryManager) InsertListingEnquiry(ctx context.Context, email string, agentID, listingID interface{}, messageStatus string) error {
	listing := listingID
	if listing == nil {
		listing = "0"
	}
	return m.Client.Insert(ctx, "contact_history", enquiryColumns, []interface{}{
		agentID, email, "90573893", SeedMessage, "LIST", agentID, "Test Data Seed Agent",
		messageStatus, listing, listing, "SENT", "mobile-test",
	})
}

// CleanUpInbox deletes every seeded enquiry.
func (m *ContactHistoryManager) CleanUpInbox(ctx context.Context) (int64, error) {
	return m.Client.Delete(ctx, "contact_history", "message", SeedMessage)
}

// UserManager reads user registration data.
type UserManager struct {
	Client *Client
}

// UserToken returns the latest validation token registered for email, or nil.
func (m *UserManager) UserToken(ctx context.Context, email string) (interface{}, error) {
	return m.Client.ColumnValue(ctx, Select{
		Fields:  "validation_token",
		Table:   "user_registration",
		Where:   "email = ?",
		Args:    []interface{}{email},
		OrderBy: "id",
		Desc:    true,
		Limit:   4,
	}, "validation_token")
}
