// Package datastore carries test data between steps.
//
// A Store holds two scopes. Scenario data is cleared before every scenario
// by the lifecycle controller; suite data lives for the whole run and is
// cleared once when the suite ends. Reads of missing keys return nil rather
// than failing, so steps can branch on presence without error handling.
//
// A Store is not safe for concurrent use. Scenarios run one at a time; a
// parallel runner would need one Store per scenario plus an explicit merge
// into the suite scope.
package datastore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Store is the scenario- and suite-scoped key/value container of a run.
type Store struct {
	scenario *orderedMap
	suite    *orderedMap
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		scenario: newOrderedMap(),
		suite:    newOrderedMap(),
	}
}

// Set stores a scenario-scoped value, replacing any previous value.
func (s *Store) Set(key string, value interface{}) {
	s.scenario.set(key, value)
}

// Get returns a scenario-scoped value, or nil when absent.
func (s *Store) Get(key string) interface{} {
	v, _ := s.scenario.get(key)
	return v
}

// Lookup returns a scenario-scoped value and whether it was present.
func (s *Store) Lookup(key string) (interface{}, bool) {
	return s.scenario.get(key)
}

// IsPresent reports whether key is set in the scenario scope.
func (s *Store) IsPresent(key string) bool {
	_, ok := s.scenario.get(key)
	return ok
}

// SetSuite stores a suite-scoped value, replacing any previous value.
func (s *Store) SetSuite(key string, value interface{}) {
	s.suite.set(key, value)
}

// GetSuite returns a suite-scoped value, or nil when absent.
func (s *Store) GetSuite(key string) interface{} {
	v, _ := s.suite.get(key)
	return v
}

// LookupSuite returns a suite-scoped value and whether it was present.
func (s *Store) LookupSuite(key string) (interface{}, bool) {
	return s.suite.get(key)
}

// IsPresentInSuite reports whether key is set in the suite scope.
func (s *Store) IsPresentInSuite(key string) bool {
	_, ok := s.suite.get(key)
	return ok
}

// ClearScenario empties the scenario scope.
func (s *Store) ClearScenario() {
	s.scenario.clear()
}

// ClearSuite empties the suite scope.
func (s *Store) ClearSuite() {
	s.suite.clear()
}

// ScenarioJSON encodes the scenario scope as a JSON object in insertion order.
func (s *Store) ScenarioJSON() string {
	return s.scenario.json()
}

// SuiteJSON encodes the suite scope as a JSON object in insertion order.
func (s *Store) SuiteJSON() string {
	return s.suite.json()
}

// ScenarioSnapshot returns a shallow copy of the scenario scope.
func (s *Store) ScenarioSnapshot() map[string]interface{} {
	return s.scenario.snapshot()
}

// SuiteSnapshot returns a shallow copy of the suite scope.
func (s *Store) SuiteSnapshot() map[string]interface{} {
	return s.suite.snapshot()
}

// orderedMap keeps first-insertion order for report legibility.
type orderedMap struct {
	keys   []string
	values map[string]interface{}
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: make(map[string]interface{})}
}

func (m *orderedMap) set(key string, value interface{}) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *orderedMap) get(key string) (interface{}, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *orderedMap) clear() {
	m.keys = nil
	m.values = make(map[string]interface{})
}

func (m *orderedMap) snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// json never fails: a value that cannot be encoded is written as its %v string.
func (m *orderedMap) json() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encodeValue(m.values[k]))
	}
	buf.WriteByte('}')
	return buf.String()
}

func encodeValue(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err == nil {
		return data
	}
	data, _ = json.Marshal(fmt.Sprintf("%v", v))
	return data
}
