// Package domain defines the fleet recommendation domain types, the selection
// catalog, validation, and the error taxonomy shared by the engine packages.
// It acts as the validation gate at pipeline entry points.
package domain

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// VehicleClass is a market segment tag.
type VehicleClass string

const (
	ClassA   VehicleClass = "A"
	ClassB   VehicleClass = "B"
	ClassC   VehicleClass = "C"
	ClassD   VehicleClass = "D"
	ClassE   VehicleClass = "E"
	ClassSUV VehicleClass = "SUV"
)

// FuelType is an energy source tag.
type FuelType string

const (
	FuelPetrol   FuelType = "benzyna"
	FuelDiesel   FuelType = "diesel"
	FuelHybrid   FuelType = "hybryda"
	FuelElectric FuelType = "elektryczny"
)

// SelectionCriteria is the validated input of one recommendation request.
// The engine treats it as read-only; Normalize returns an independent copy.
type SelectionCriteria struct {
	Classes   []VehicleClass `json:"car_class" validate:"dive,oneof=A B C D E SUV"`
	Fuels     []FuelType     `json:"fuel_type" validate:"dive,oneof=benzyna diesel hybryda elektryczny"`
	Equipment []string       `json:"equipment" validate:"dive,equipment"`

	MaxPrice     int `json:"price_new" validate:"gte=0"`
	HorizonYears int `json:"exploitation_period" validate:"gte=1,lte=5"`
	MaxMileage   int `json:"max_mileage" validate:"gte=1000"`
	ServiceCost  int `json:"service_cost" validate:"gte=0"`

	PetrolPrice      decimal.Decimal `json:"petrol_price" validate:"gte=0"`
	DieselPrice      decimal.Decimal `json:"diesel_price" validate:"gte=0"`
	ElectricityPrice decimal.Decimal `json:"electricity_price" validate:"gte=0"`
}

// DefaultCriteria returns criteria carrying the catalog energy prices. Decode
// requests into it so that omitted prices keep their defaults while an
// explicit zero stays zero.
func DefaultCriteria() SelectionCriteria {
	return SelectionCriteria{
		PetrolPrice:      DefaultPetrolPrice,
		DieselPrice:      DefaultDieselPrice,
		ElectricityPrice: DefaultElectricityPrice,
	}
}

// Normalize returns a copy whose tag sets are trimmed, deduplicated and
// sorted, so that equal sets compare and serialize equally.
func (c SelectionCriteria) Normalize() SelectionCriteria {
	out := c
	out.Classes = normalizeSet(c.Classes)
	out.Fuels = normalizeSet(c.Fuels)
	out.Equipment = normalizeSet(c.Equipment)
	return out
}

func normalizeSet[T ~string](in []T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		v = T(strings.TrimSpace(string(v)))
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ClassNames returns the class tags as plain strings.
func (c SelectionCriteria) ClassNames() []string { return toStrings(c.Classes) }

// FuelNames returns the fuel tags as plain strings.
func (c SelectionCriteria) FuelNames() []string { return toStrings(c.Fuels) }

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
