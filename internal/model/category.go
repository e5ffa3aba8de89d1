package model

import "strings"

// Category classifies a speaker's company relative to the product being pitched
type Category string

const (
	CategoryBuilder    Category = "Builder"    // Contractors and engineering firms that build projects
	CategoryOwner      Category = "Owner"      // Owners, developers and agencies that commission projects
	CategoryPartner    Category = "Partner"    // Technology vendors and consultants
	CategoryCompetitor Category = "Competitor" // Drone and reality-capture providers
	CategoryCustomer   Category = "Customer"   // Existing customers
	CategoryOther      Category = "Other"      // Anything else, and the fallback
)

// Categories lists every member of the closed enumeration.
var Categories = []Category{
	CategoryBuilder,
	CategoryOwner,
	CategoryPartner,
	CategoryCompetitor,
	CategoryCustomer,
	CategoryOther,
}

// ParseCategory maps free text onto the enumeration. Matching is exact after
// trimming; anything unrecognized becomes CategoryOther, so every record ends
// up with exactly one category.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return CategoryOther
}

// Valid reports whether c is a member of the enumeration.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

var categoryRank = map[Category]int{
	CategoryBuilder:    0,
	CategoryOwner:      1,
	CategoryCustomer:   2,
	CategoryPartner:    3,
	CategoryCompetitor: 4,
	CategoryOther:      5,
}

// CategoryRank orders categories for reports and exports: Builder, Owner,
// Customer, Partner, Competitor, Other, then anything unknown.
func CategoryRank(c Category) int {
	if r, ok := categoryRank[c]; ok {
		return r
	}
	return len(categoryRank)
}

// Classification is the outcome of classifying one speaker's company.
type Classification struct {
	Category   Category `json:"category"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}

// FailedClassification is the degraded default recorded when classification
// cannot be completed for a record.
func FailedClassification(err error) Classification {
	return Classification{
		Category:   CategoryOther,
		Reasoning:  "Classification failed: " + err.Error(),
		Confidence: 0.0,
	}
}
