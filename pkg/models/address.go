package models

import "strings"

// Address is a shipping address. Either the division/district/upazilla
// triple or the city/zone/area triple must be filled in.
type Address struct {
	FirstName     string `bson:"first_name" json:"firstName" validate:"required,notundefined"`
	LastName      string `bson:"last_name" json:"lastName" validate:"required,notundefined"`
	StreetAddress string `bson:"street_address" json:"streetAddress" validate:"required,notundefined"`
	Division      string `bson:"division,omitempty" json:"division,omitempty" validate:"notundefined"`
	District      string `bson:"district,omitempty" json:"district,omitempty" validate:"notundefined"`
	Upazilla      string `bson:"upazilla,omitempty" json:"upazilla,omitempty" validate:"notundefined"`
	City          string `bson:"city,omitempty" json:"city,omitempty" validate:"notundefined"`
	Zone          string `bson:"zone,omitempty" json:"zone,omitempty" validate:"notundefined"`
	Area          string `bson:"area,omitempty" json:"area,omitempty" validate:"notundefined"`
	ZipCode       string `bson:"zip_code" json:"zipCode" validate:"required,notundefined"`
	Mobile        string `bson:"mobile" json:"mobile" validate:"required,notundefined,bdmobile"`
	Email         string `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
}

func (a Address) HasAdministrativeRegion() bool {
	return a.Division != "" && a.District != "" && a.Upazilla != ""
}

func (a Address) HasCityRegion() bool {
	return a.City != "" && a.Zone != "" && a.Area != ""
}

// Destination returns the place names used for delivery tiering, most
// specific first.
func (a Address) Destination() Destination {
	if a.HasCityRegion() {
		return Destination{City: a.City, Zone: a.Zone, Area: a.Area}
	}
	return Destination{City: a.District, Zone: a.Upazilla, Area: a.Division}
}

// Destination is the city/zone/area view of an address.
type Destination struct {
	City string `json:"city"`
	Zone string `json:"zone"`
	Area string `json:"area,omitempty"`
}

func (d Destination) Names() []string {
	names := make([]string, 0, 3)
	for _, n := range []string{d.Zone, d.Area, d.City} {
		if strings.TrimSpace(n) != "" {
			names = append(names, n)
		}
	}
	return names
}

func (d Destination) IsZero() bool {
	return len(d.Names()) == 0
}
