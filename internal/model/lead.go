package model

import "time"

// LeadStatus represents where a lead sits in the outreach lifecycle.
// Statuses only move forward, with one exception: rejecting a draft
// returns the lead to analyzed so a new draft can be generated.
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusAnalyzed     LeadStatus = "analyzed"
	LeadStatusDraftReady   LeadStatus = "draft_ready"
	LeadStatusApproved     LeadStatus = "approved"
	LeadStatusSent         LeadStatus = "sent"
	LeadStatusReplied      LeadStatus = "replied"
	LeadStatusUnsubscribed LeadStatus = "unsubscribed"
	LeadStatusBounced      LeadStatus = "bounced"
)

// leadStatusRank orders the forward-moving statuses. Terminal statuses
// (unsubscribed, bounced) sit outside the ordering and can be entered
// from any state.
var leadStatusRank = map[LeadStatus]int{
	LeadStatusNew:        0,
	LeadStatusAnalyzed:   1,
	LeadStatusDraftReady: 2,
	LeadStatusApproved:   3,
	LeadStatusSent:       4,
	LeadStatusReplied:    5,
}

// AtOrPast reports whether s has reached other in the forward ordering.
// Terminal statuses always report true.
func (s LeadStatus) AtOrPast(other LeadStatus) bool {
	if s == LeadStatusUnsubscribed || s == LeadStatusBounced {
		return true
	}
	a, ok1 := leadStatusRank[s]
	b, ok2 := leadStatusRank[other]
	return ok1 && ok2 && a >= b
}

// Industry is the closed set of business categories a lead can carry.
type Industry string

const (
	IndustryECRetail   Industry = "ec_retail"
	IndustryRestaurant Industry = "restaurant"
	IndustryGym        Industry = "gym"
	IndustrySaaS       Industry = "saas"
	IndustryOther      Industry = "other"
)

// AllIndustries lists every valid industry value.
func AllIndustries() []Industry {
	return []Industry{IndustryECRetail, IndustryRestaurant, IndustryGym, IndustrySaaS, IndustryOther}
}

// ParseIndustry maps a raw string to a known industry, falling back to
// other for anything unrecognized.
func ParseIndustry(s string) Industry {
	for _, ind := range AllIndustries() {
		if string(ind) == s {
			return ind
		}
	}
	return IndustryOther
}

// Lead is a prospective customer discovered by scraping or import.
// Email is unique across the store.
type Lead struct {
	ID              string     `json:"id"`
	CompanyName     string     `json:"company_name"`
	Email           string     `json:"email"`
	WebsiteURL      string     `json:"website_url"`
	Industry        Industry   `json:"industry"`
	DiscoveryMethod string     `json:"discovery_method"`
	ICPScore        float64    `json:"icp_score"`
	MXValid         bool       `json:"mx_valid"`
	Status          LeadStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ValidatedEmail is a transient extraction result. It feeds lead
// creation and is never persisted on its own.
type ValidatedEmail struct {
	Address   string `json:"address"`
	SourceURL string `json:"source_url"`
	MXValid   bool   `json:"mx_valid"`
}
