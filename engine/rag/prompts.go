package rag

import "github.com/WessleyAI/wessley-fleet/engine/gen"

// Template IDs registered by NewTemplates.
const (
	TemplateCostAnalysis = "cost_analysis"
	TemplateRiskAnalysis = "risk_analysis"
	TemplateSynthesis    = "synthesis"
)

const costAnalysisPrompt = `Jesteś ekspertem ds. flot samochodowych. Twoim zadaniem jest wybór samochodów dla floty na podstawie danych i kryteriów oraz wyliczenie całkowitego kosztu posiadania (TCO).

Przeanalizuj poniższy kontekst, który pochodzi z naszej wewnętrznej bazy danych pojazdów:
--- KONTEKST ---
{{ .context }}
--- KONIEC KONTEKSTU ---

Kryteria wyboru podane przez menedżera floty:
- Klasa samochodu: {{ .classes }}
- Rodzaj paliwa: {{ .fuels }}
- Maksymalna cena zakupu: {{ .price_new }} PLN
- Wymagane wyposażenie: {{ .equipment }}
- Okres eksploatacji: {{ .horizon }} lat
- Maksymalny przebieg w okresie eksploatacji: {{ .max_mileage }} km
- Koszt jednego przeglądu: {{ .service_cost }} PLN
- Cena benzyny: {{ .petrol_price }} PLN/l, cena oleju napędowego: {{ .diesel_price }} PLN/l, cena energii elektrycznej: {{ .electricity_price }} PLN/kWh

Twoje zadanie:
1. Wybierz maksymalnie {{ .max_candidates }} modeli z kontekstu. Klasa i rodzaj paliwa to kryteria obowiązkowe; cena i wyposażenie są kryteriami pomocniczymi.
2. Dla każdego modelu wylicz TCO dla okresu {{ .horizon }} lat jako sumę trzech składników:
   a) utrata wartości = cena zakupu - wartość rezydualna po {{ .horizon }} latach (jeśli brak wartości dla modelu, użyj średniej krzywej utraty wartości segmentu z kontekstu),
   b) koszt paliwa lub energii = ({{ .max_mileage }} / 100) x zużycie na 100 km x cena jednostkowa właściwa dla rodzaju napędu,
   c) koszt serwisu = ({{ .max_mileage }} / interwał przeglądów w km) x {{ .service_cost }} PLN.
3. Przedstaw wyniki w czytelnym raporcie w języku polskim (Markdown, tabela TCO), posortowane od najniższego TCO.
4. Lista "candidates" musi zawierać nazwy wszystkich modeli omówionych w raporcie, dokładnie w tej samej postaci.

Odpowiedz WYŁĄCZNIE obiektem JSON zgodnym z poniższym schematem, bez żadnego tekstu przed ani po nim:
{{ .schema }}
`

const riskAnalysisPrompt = `Jesteś ekspertem ds. niezawodności samochodów. Na podstawie swojej ogólnej wiedzy przygotuj analizę ryzyka dla modelu: {{ .model_name }}.

Uwzględnij:
1. Typowe usterki i słabe punkty tego modelu (silnik, skrzynia biegów, elektronika, zawieszenie).
2. Znane akcje serwisowe i kampanie przywoławcze.
3. Ogólną ocenę niezawodności w skali od 1 do 10 wraz z krótkim uzasadnieniem, z perspektywy floty firmowej.

Odpowiedź sformatuj w języku polskim, zwięźle i czytelnie (Markdown).
`

const synthesisPrompt = `Jesteś doradcą menedżera floty samochodowej. Masz do dyspozycji raport kosztów TCO oraz analizy ryzyka dla kandydatów.

--- RAPORT KOSZTÓW ---
{{ .cost_report }}
--- KONIEC RAPORTU KOSZTÓW ---

--- ANALIZY RYZYKA ---
{{ .risk_reports }}
--- KONIEC ANALIZ RYZYKA ---

Twoje zadanie:
1. Zestaw koszty z ryzykiem awarii każdego kandydata.
2. Wskaż jeden, optymalny model dla floty i uzasadnij wybór.
3. Jeżeli model o najniższym TCO nie jest optymalnym wyborem z powodu ryzyka awarii, wyraźnie to zaznacz i wyjaśnij dlaczego.

Odpowiedź sformatuj w języku polskim jako sekcję "## Rekomendacja końcowa" (Markdown).
`

// NewTemplates returns a registry with the three recommendation prompts.
func NewTemplates() *gen.Templates {
	t := gen.NewTemplates()
	t.MustRegister(TemplateCostAnalysis, costAnalysisPrompt)
	t.MustRegister(TemplateRiskAnalysis, riskAnalysisPrompt)
	t.MustRegister(TemplateSynthesis, synthesisPrompt)
	return t
}
