// Package testutil provides testing utilities for the list janitor.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior of a scripted mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockMailchimp is a configurable stand-in for the Mailchimp API. It scripts
// members pages by offset, per-member archive responses, and instruments
// PATCH concurrency so tests can verify the archiver's window bound.
type MockMailchimp struct {
	server *httptest.Server
	listID string

	mu             sync.Mutex
	pages          map[int]string
	listFailures   map[int]MockResponse
	patchResponses map[string]MockResponse
	patchDelay     time.Duration

	listRequests  int
	patchRequests map[string]int
	lastAuth      string
	lastListQuery url.Values

	inflightPatches    int
	maxInflightPatches int
}

// NewMockMailchimp creates a mock server for the given list ID. Unscripted
// offsets return an empty members page; unscripted member IDs archive
// successfully.
func NewMockMailchimp(listID string) *MockMailchimp {
	mock := &MockMailchimp{
		listID:         listID,
		pages:          make(map[int]string),
		listFailures:   make(map[int]MockResponse),
		patchResponses: make(map[string]MockResponse),
		patchRequests:  make(map[string]int),
	}

	mux := http.NewServeMux()
	membersPath := fmt.Sprintf("/3.0/lists/%s/members", listID)
	mux.HandleFunc("GET "+membersPath, mock.handleList)
	mux.HandleFunc("PATCH "+membersPath+"/{id}", mock.handlePatch)

	mock.server = httptest.NewServer(mux)
	return mock
}

// URL returns the mock server URL.
func (m *MockMailchimp) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockMailchimp) Close() {
	m.server.Close()
}

// SetMembersPage scripts the members page returned at the given offset.
func (m *MockMailchimp) SetMembersPage(offset int, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[offset] = MembersPage(ids...)
}

// SetListFailure scripts a failure response for the page read at the given
// offset.
func (m *MockMailchimp) SetListFailure(offset int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listFailures[offset] = resp
}

// SetPatchResponse scripts the archive response for a member ID.
func (m *MockMailchimp) SetPatchResponse(id string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patchResponses[id] = resp
}

// SetPatchDelay makes every archive call take at least d, so concurrency
// tests can observe overlapping requests.
func (m *MockMailchimp) SetPatchDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patchDelay = d
}

// ListRequests returns the number of members page reads served.
func (m *MockMailchimp) ListRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listRequests
}

// PatchRequests returns the number of archive calls served for a member ID.
func (m *MockMailchimp) PatchRequests(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patchRequests[id]
}

// TotalPatchRequests returns the number of archive calls served in total.
func (m *MockMailchimp) TotalPatchRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.patchRequests {
		total += n
	}
	return total
}

// MaxInflightPatches returns the high-water mark of concurrently served
// archive calls.
func (m *MockMailchimp) MaxInflightPatches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInflightPatches
}

// LastAuthHeader returns the Authorization header of the most recent request.
func (m *MockMailchimp) LastAuthHeader() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAuth
}

// LastListQuery returns the query parameters of the most recent page read.
func (m *MockMailchimp) LastListQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastListQuery
}

func (m *MockMailchimp) handleList(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	m.mu.Lock()
	m.listRequests++
	m.lastAuth = r.Header.Get("Authorization")
	m.lastListQuery = r.URL.Query()
	failure, failed := m.listFailures[offset]
	page, scripted := m.pages[offset]
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if failed {
		if failure.Delay > 0 {
			time.Sleep(failure.Delay)
		}
		w.WriteHeader(failure.StatusCode)
		fmt.Fprint(w, failure.Body)
		return
	}

	if !scripted {
		page = MembersPage()
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, page)
}

func (m *MockMailchimp) handlePatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	m.mu.Lock()
	m.patchRequests[id]++
	m.lastAuth = r.Header.Get("Authorization")
	m.inflightPatches++
	if m.inflightPatches > m.maxInflightPatches {
		m.maxInflightPatches = m.inflightPatches
	}
	resp, scripted := m.patchResponses[id]
	delay := m.patchDelay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inflightPatches--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if scripted {
		w.WriteHeader(resp.StatusCode)
		fmt.Fprint(w, resp.Body)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"id":%q,"status":"cleaned"}`, id)
}

// MembersPage builds the JSON body of a members page holding the given IDs,
// with the auxiliary fields a real response carries for each member.
func MembersPage(ids ...string) string {
	members := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, map[string]any{
			"id":               id,
			"email_address":    fmt.Sprintf("member-%s@example.com", id),
			"unique_email_id":  "unique-" + id,
			"full_name":        "Member " + strings.ToUpper(id),
			"status":           "unsubscribed",
			"timestamp_signup": "2021-01-01T00:00:00+00:00",
		})
	}

	body, err := json.Marshal(map[string]any{"members": members})
	if err != nil {
		panic(err)
	}
	return string(body)
}

// APIErrorBody builds the structured error body Mailchimp sends with 4xx
// responses.
func APIErrorBody(errType, title string, status int, detail string) string {
	body, err := json.Marshal(map[string]any{
		"type":   errType,
		"title":  title,
		"status": status,
		"detail": detail,
	})
	if err != nil {
		panic(err)
	}
	return string(body)
}
