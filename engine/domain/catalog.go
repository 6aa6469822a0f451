package domain

import "github.com/shopspring/decimal"

// Option is a selectable catalog entry with its display label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Classes lists the supported vehicle classes.
var Classes = []Option{
	{string(ClassA), "Klasa A (miejskie)"},
	{string(ClassB), "Klasa B (małe)"},
	{string(ClassC), "Klasa C (kompakty)"},
	{string(ClassD), "Klasa D (średnie)"},
	{string(ClassE), "Klasa E (wyższe)"},
	{string(ClassSUV), "SUV"},
}

// Fuels lists the supported energy sources.
var Fuels = []Option{
	{string(FuelPetrol), "Benzyna"},
	{string(FuelDiesel), "Diesel"},
	{string(FuelHybrid), "Hybryda"},
	{string(FuelElectric), "Elektryczny"},
}

// Equipment lists the equipment tags a fleet manager may require.
var Equipment = []Option{
	{"klimatyzacja automatyczna dwustrefowa", "Klimatyzacja automatyczna dwustrefowa"},
	{"klimatyzacja automatyczna trzystrefowa", "Klimatyzacja automatyczna trójstrefowa"},
	{"światła LED", "światła LED"},
	{"napęd AWD", "Napęd AWD"},
	{"skórzana tapicerka", "Skórzana tapicerka"},
	{"podgrzewane fotele", "Podgrzewane fotele"},
	{"nawigacja GPS", "Nawigacja GPS"},
	{"kamera cofania", "Kamera cofania"},
	{"kamera 360 stopni", "Kamera 360 stopni"},
	{"tempomat adaptacyjny", "Aktywny tempomat"},
	{"asystent pasa ruchu", "Asystent pasa ruchu"},
	{"automatyczne odczytywanie znaków drogowych", "Odczytywanie znaków drogowych"},
	{"czujniki parkowania", "Czujniki parkowania"},
	{"skrzynia biegów automatyczna", "Skrzynia biegów automatyczna"},
	{"zawieszenie regulowane", "Zawieszenie regulowane"},
}

// Default energy unit prices in PLN (per litre, per kWh).
var (
	DefaultPetrolPrice      = decimal.RequireFromString("6.00")
	DefaultDieselPrice      = decimal.RequireFromString("6.00")
	DefaultElectricityPrice = decimal.RequireFromString("1.80")
)

// Horizon and mileage bounds accepted for TCO analysis.
const (
	MinHorizonYears = 1
	MaxHorizonYears = 5
	MinMileage      = 1000
)

var equipmentSet = func() map[string]bool {
	m := make(map[string]bool, len(Equipment))
	for _, o := range Equipment {
		m[o.Value] = true
	}
	return m
}()

// KnownEquipment reports whether tag is in the equipment catalog.
func KnownEquipment(tag string) bool { return equipmentSet[tag] }
