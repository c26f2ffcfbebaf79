package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// FeedType identifies which registry feed produced a reference.
type FeedType string

const (
	FeedCurrentEvents FeedType = "current"
	FeedCompany       FeedType = "company"
)

// DedupKey is the identity hash of a filing event.
type DedupKey string

// FilingReference is a candidate filing yielded by the feed poller.
type FilingReference struct {
	RegistrantID string
	DisplayName  string
	DocumentURL  string
	Title        string
	FormType     string
	PublishedAt  time.Time
	FeedType     FeedType
}

// Key hashes title and publication time; two references with identical
// title and timestamp always collapse to the same key.
func (r FilingReference) Key() DedupKey {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(r.Title)))
	h.Write([]byte{'|'})
	h.Write([]byte(r.PublishedAt.UTC().Format(time.RFC3339Nano)))
	return DedupKey(hex.EncodeToString(h.Sum(nil)))
}

// EntityInfo describes the registrant behind a filing.
type EntityInfo struct {
	RegistrantID      string
	Ticker            string
	DisplayName       string
	IncorporationCode string
	Incorporation     string
	OperationCode     string
	Operation         string
}

// UnknownEntity is returned when the registry could not be reached.
func UnknownEntity(registrantID string) EntityInfo {
	return EntityInfo{RegistrantID: registrantID}
}

// Known reports whether at least one jurisdiction was resolved.
func (e EntityInfo) Known() bool {
	return e.Incorporation != "" || e.Operation != ""
}

// HasTicker reports whether a trading symbol is available.
func (e EntityInfo) HasTicker() bool {
	return strings.TrimSpace(e.Ticker) != ""
}
