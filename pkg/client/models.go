package client

// Member is a single list member as returned by the members collection
// endpoint. The remote payload carries many more fields; only the ones the
// janitor reads or renders are decoded.
type Member struct {
	ID              string `json:"id"`
	EmailAddress    string `json:"email_address"`
	UniqueEmailID   string `json:"unique_email_id"`
	FullName        string `json:"full_name"`
	Status          string `json:"status"`
	TimestampSignup string `json:"timestamp_signup"`
}

// ListResponse is the body of a successful members page read.
type ListResponse struct {
	Members []Member `json:"members"`
}
