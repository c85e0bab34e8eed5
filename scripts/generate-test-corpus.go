//go:build ignore

// Package main generates a synthetic grant corpus for benchmarking.
// Usage: go run scripts/generate-test-corpus.go -records 10000 -output testdata/bench/corpus.jsonl
//
// Output is deterministic for a given seed. Renewals share a project_id
// across years so deduplication does real work, and a fraction of awards
// carry contact columns so the contacts path is exercised too.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numRecords  = flag.Int("records", 10000, "Number of award records to generate")
	outputPath  = flag.String("output", "testdata/bench/corpus.jsonl", "Output JSONL file")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
	renewalRate = flag.Float64("renewals", 0.25, "Fraction of awards that renew an earlier project")
	contactRate = flag.Float64("contacts", 0.3, "Fraction of awards with contact columns")
)

// award mirrors one corpus line. Field names match the ingest schema.
type award struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
	Terms     string `json:"terms,omitempty"`

	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`

	OrgName string `json:"org_name"`
	OrgType string `json:"org_type"`
	State   string `json:"state"`

	FundingUSD float64 `json:"funding_usd"`
	Year       int     `json:"year"`

	PatentCount      int `json:"patent_count,omitempty"`
	PublicationCount int `json:"publication_count,omitempty"`
	TrialCount       int `json:"trial_count,omitempty"`

	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// Word pools for composing grant-flavored titles and abstracts
var (
	methods = []string{
		"Machine Learning", "CRISPR", "Microfluidic", "Ultrasound", "Photonic",
		"Electrochemical", "Genomic", "Wearable", "Autonomous", "Nanoparticle",
		"Microbial", "Thermoelectric", "Computational", "Optical", "Piezoelectric",
	}
	activities = []string{
		"Screening", "Monitoring", "Imaging", "Sequencing", "Diagnosis",
		"Delivery", "Detection", "Characterization", "Mapping", "Forecasting",
		"Remediation", "Synthesis",
	}
	targets = []string{
		"Drought Tolerant Wheat", "Pancreatic Cancer", "Municipal Wastewater",
		"Soil Microbiomes", "Preterm Infants", "Lithium Battery Recycling",
		"Coral Reef Restoration", "Crop Yield Prediction", "Rare Disease Variants",
		"Antibiotic Resistance", "Traumatic Brain Injury", "Grid Scale Storage",
	}
	categories = []string{
		"agbio", "devices", "diagnostics", "therapeutics",
		"digital_health", "energy", "materials",
	}
	states = []string{
		"CA", "MA", "TX", "NY", "WA", "KS", "IA", "CO",
		"NC", "MD", "PA", "IL", "MN", "GA", "OR",
	}
	companyNames = []string{
		"Helix Therapeutics", "Bayshore Labs", "Vantage Biosciences",
		"Cobalt Dynamics", "Meridian Devices", "Stratus Genomics",
		"Redwood Analytics", "Northfield Energy",
	}
	universityNames = []string{
		"Bayshore University", "Lakeview State University", "Western Plains University",
		"Harborview Institute of Technology", "Crestline University",
	}
	hospitalNames = []string{
		"St. Aldric Medical Center", "Riverbend Children's Hospital",
		"Summit Regional Health",
	}
	instituteNames = []string{
		"Prairie Research Institute", "Coastal Systems Institute",
		"Institute for Applied Genomics",
	}
	firstNames = []string{"Elena", "Marcus", "Priya", "Daniel", "Yuki", "Sofia", "Omar", "Grace"}
	lastNames  = []string{"Ruiz", "Chen", "Patel", "Okafor", "Nguyen", "Kowalski", "Haddad", "Lindgren"}
)

// orgPool maps an org type to its name pool, weighted toward companies
// and universities the way real award data skews.
func orgPool(r *rand.Rand) (orgType string, names []string) {
	switch roll := r.Intn(100); {
	case roll < 40:
		return "company", companyNames
	case roll < 75:
		return "university", universityNames
	case roll < 85:
		return "hospital", hospitalNames
	default:
		return "institute", instituteNames
	}
}

func main() {
	flag.Parse()
	r := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Printf("Generating %d records in %s...\n", *numRecords, *outputPath)

	enc := json.NewEncoder(f)
	var prior []award
	renewals, contacts := 0, 0

	for i := 0; i < *numRecords; i++ {
		var a award
		if len(prior) > 0 && r.Float64() < *renewalRate {
			a = renewAward(r, i, prior[r.Intn(len(prior))])
			renewals++
		} else {
			a = newAward(r, i)
			prior = append(prior, a)
		}

		if r.Float64() < *contactRate {
			addContact(r, &a)
			contacts++
		}

		if err := enc.Encode(a); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing record %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d records (%d renewals, %d with contacts).\n",
		*numRecords, renewals, contacts)
}

func randomWord(r *rand.Rand, pool []string) string {
	return pool[r.Intn(len(pool))]
}

// newAward builds a fresh project's first award.
func newAward(r *rand.Rand, index int) award {
	method := randomWord(r, methods)
	activity := randomWord(r, activities)
	target := randomWord(r, targets)
	orgType, names := orgPool(r)

	title := fmt.Sprintf("%s %s for %s", method, activity, target)
	abstract := fmt.Sprintf(
		"This project develops %s approaches to %s targeting %s. "+
			"Phase one establishes feasibility on benchmark datasets; phase two validates "+
			"the %s pipeline under field conditions with partner sites.",
		strings.ToLower(method), strings.ToLower(activity), strings.ToLower(target),
		strings.ToLower(activity))

	terms := []string{
		strings.ToLower(method),
		strings.ToLower(activity),
		strings.ToLower(target),
	}
	if r.Intn(2) == 0 {
		terms = append(terms, strings.ToLower(randomWord(r, targets)))
	}

	a := award{
		ID:         fmt.Sprintf("AWD-%06d", index),
		ProjectID:  fmt.Sprintf("PRJ-%06d", index),
		Title:      title,
		Abstract:   abstract,
		Terms:      strings.Join(terms, "\n"),
		Category:   randomWord(r, categories),
		Confidence: 0.6 + float64(r.Intn(40))/100,
		OrgName:    randomWord(r, names),
		OrgType:    orgType,
		State:      randomWord(r, states),
		FundingUSD: fundingAmount(r),
		Year:       2015 + r.Intn(10),
	}

	// Outputs accumulate on a minority of awards.
	if r.Intn(100) < 15 {
		a.PatentCount = 1 + r.Intn(3)
	}
	if r.Intn(100) < 35 {
		a.PublicationCount = 1 + r.Intn(8)
	}
	if a.Category == "therapeutics" || a.Category == "devices" {
		if r.Intn(100) < 25 {
			a.TrialCount = 1 + r.Intn(2)
		}
	}

	return a
}

// renewAward continues an earlier project: same project and org, a new
// award ID, a later year, and follow-on funding.
func renewAward(r *rand.Rand, index int, base award) award {
	a := base
	a.ID = fmt.Sprintf("AWD-%06d", index)
	a.Year = base.Year + 1 + r.Intn(3)
	if a.Year > 2024 {
		a.Year = 2024
	}
	a.FundingUSD = fundingAmount(r)
	a.Abstract = base.Abstract + " This renewal extends the work to multi-site deployment."
	a.ContactName = ""
	a.ContactEmail = ""
	return a
}

func addContact(r *rand.Rand, a *award) {
	first := randomWord(r, firstNames)
	last := randomWord(r, lastNames)
	a.ContactName = fmt.Sprintf("Dr. %s %s", first, last)
	a.ContactEmail = fmt.Sprintf("%s.%s@%s.example",
		strings.ToLower(first), strings.ToLower(last),
		strings.Split(strings.ToLower(a.OrgName), " ")[0])
}

// fundingAmount skews small with a long tail, rounded to the nearest
// thousand, capped at $5M.
func fundingAmount(r *rand.Rand) float64 {
	amount := 50_000 + r.ExpFloat64()*400_000
	if amount > 5_000_000 {
		amount = 5_000_000
	}
	return float64(int(amount/1000)) * 1000
}
