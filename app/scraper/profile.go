// Package scraper extracts profile records from scraped pages. Pages embed their
// state as JSON in a script tag (next.js style), the extractor pulls the display
// user subset out of it. Fields missing from the payload stay null in the output.
package scraper

import (
	"encoding/json"
	"fmt"
)

// Profile is a single extracted profile record. Key names match the established
// output format consumed downstream, pointers keep absent fields as JSON nulls.
type Profile struct {
	Name           *string  `json:"Name"`
	PersonalPhone  *string  `json:"Personal Phone"`
	BusinessPhone  *string  `json:"Business Phone"`
	Email          *string  `json:"Email"`
	Address        *string  `json:"Address"`
	BusinessName   *string  `json:"Business Name"`
	RatingsCount   *int     `json:"Ratings Count"`
	RatingsAverage *float64 `json:"Ratings Average"`
}

// Empty reports no field was extracted at all, treated as a failed extraction
func (p Profile) Empty() bool {
	return p.Name == nil && p.PersonalPhone == nil && p.BusinessPhone == nil && p.Email == nil &&
		p.Address == nil && p.BusinessName == nil && p.RatingsCount == nil && p.RatingsAverage == nil
}

// nextData mirrors the relevant subset of the embedded page state
type nextData struct {
	Props struct {
		PageProps struct {
			DisplayUser *displayUser `json:"displayUser"`
		} `json:"pageProps"`
	} `json:"props"`
}

type displayUser struct {
	Name         *string `json:"name"`
	PhoneNumbers struct {
		Cell     *string `json:"cell"`
		Business *string `json:"business"`
	} `json:"phoneNumbers"`
	Email           *string `json:"email"`
	BusinessAddress *struct {
		Address1   string `json:"address1"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postalCode"`
	} `json:"businessAddress"`
	BusinessName *string `json:"businessName"`
	Ratings      *struct {
		Count   *int     `json:"count"`
		Average *float64 `json:"average"`
	} `json:"ratings"`
}

// ProfileFromNextData decodes the embedded json payload and picks profile fields.
// Absent keys produce nil fields, a payload without displayUser is an error.
func ProfileFromNextData(data []byte) (Profile, error) {
	var nd nextData
	if err := json.Unmarshal(data, &nd); err != nil {
		return Profile{}, fmt.Errorf("can't decode page data: %w", err)
	}

	du := nd.Props.PageProps.DisplayUser
	if du == nil {
		return Profile{}, fmt.Errorf("no displayUser in page data")
	}

	res := Profile{
		Name:          du.Name,
		PersonalPhone: du.PhoneNumbers.Cell,
		BusinessPhone: du.PhoneNumbers.Business,
		Email:         du.Email,
		BusinessName:  du.BusinessName,
	}

	if ba := du.BusinessAddress; ba != nil {
		addr := fmt.Sprintf("%s, %s, %s %s", ba.Address1, ba.City, ba.State, ba.PostalCode)
		res.Address = &addr
	}

	if r := du.Ratings; r != nil {
		res.RatingsCount = r.Count
		res.RatingsAverage = r.Average
	}

	return res, nil
}
