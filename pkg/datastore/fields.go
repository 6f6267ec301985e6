package datastore

// Keys shared between step definitions.
const (
	KeyTestData             = "TestDataTable"
	KeyAgentAdCreditBalance = "originalAdCreditBalance"
	KeyListingID            = "ListingID"
	KeyAgentID              = "AgentId"
	KeyAgentEmail           = "AgentEmail"
)

// SetTestData stores the scenario's data table.
func (s *Store) SetTestData(value interface{}) { s.Set(KeyTestData, value) }

// TestData returns the scenario's data table, or nil when unset.
func (s *Store) TestData() interface{} { return s.Get(KeyTestData) }

// SetAgentAdCreditBalance stores the agent's ad credit balance before the scenario spent any.
func (s *Store) SetAgentAdCreditBalance(value interface{}) { s.Set(KeyAgentAdCreditBalance, value) }

// AgentAdCreditBalance returns the agent's ad credit balance before the scenario spent any, or nil when unset.
func (s *Store) AgentAdCreditBalance() interface{} { return s.Get(KeyAgentAdCreditBalance) }

// SetListingID stores the listing the scenario created or opened.
func (s *Store) SetListingID(value interface{}) { s.Set(KeyListingID, value) }

// ListingID returns the listing the scenario created or opened, or nil when unset.
func (s *Store) ListingID() interface{} { return s.Get(KeyListingID) }

// SetAgentID stores the logged-in agent's id.
func (s *Store) SetAgentID(value interface{}) { s.Set(KeyAgentID, value) }

// AgentID returns the logged-in agent's id, or nil when unset.
func (s *Store) AgentID() interface{} { return s.Get(KeyAgentID) }

// SetAgentEmail stores the logged-in agent's email.
func (s *Store) SetAgentEmail(value interface{}) { s.Set(KeyAgentEmail, value) }

// AgentEmail returns the logged-in agent's email, or nil when unset.
func (s *Store) AgentEmail() interface{} { return s.Get(KeyAgentEmail) }

// String returns a scenario value as a string when it holds one.
func (s *Store) String(key string) (string, bool) {
	v, ok := s.Get(key).(string)
	return v, ok
}
