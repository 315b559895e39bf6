package catalog

import (
	"davisweb/lib/textutil"

	"github.com/antzucaro/matchr"
)

// ResolveSubjectCode maps a subject name to its three-letter code. Exact
// names hit the table directly; anything else falls back to the closest
// Jaro-Winkler match above a similarity floor, since the portals abbreviate
// subject names inconsistently between pages.
func ResolveSubjectCode(name string) (string, bool) {
	if code, ok := SubjectCodesByName[name]; ok {
		return code, true
	}

	norm := textutil.NormalizeName(name)
	var bestCode string
	var bestScore float64
	for known, code := range SubjectCodesByName {
		score := matchr.JaroWinkler(norm, textutil.NormalizeName(known), false)
		if score > bestScore {
			bestScore = score
			bestCode = code
		}
	}
	if bestScore >= 0.92 {
		return bestCode, true
	}
	return "", false
}

// SubjectName returns the full subject name for a code, empty when unknown.
func SubjectName(code string) string {
	return subjectNamesByCode[code]
}

var SubjectCodesByName = map[string]string{
	"African American & African Std":  "AAS",
	"Agricultural & Resource Econ":    "ARE",
	"Agricultural Education":          "AED",
	"Agronomy":                        "AGR",
	"American Studies":                "AMS",
	"Animal Biology":                  "ABI",
	"Animal Science":                  "ANS",
	"Anthropology":                    "ANT",
	"Applied Biological System Tech":  "ABT",
	"Arabic":                          "ARB",
	"Art History":                     "AHI",
	"Art Studio":                      "ART",
	"Asian American Studies":          "ASA",
	"Astronomy":                       "AST",
	"Atmospheric Science":             "ATM",
	"Avian Sciences":                  "AVS",
	"Biological Sciences":             "BIS",
	"Biostatistics":                   "BST",
	"Biotechnology":                   "BIT",
	"Cantonese":                       "CAN",
	"Chemistry":                       "CHE",
	"Chicano Studies":                 "CHI",
	"Chinese":                         "CHN",
	"Cinema and Digital Media":        "CDM",
	"Classics":                        "CLA",
	"Communication":                   "CMN",
	"Community & Regional Develpmnt":  "CRD",
	"Comparative Literature":          "COM",
	"Cultural Studies":                "CST",
	"Danish":                          "DAN",
	"Design":                          "DES",
	"Dramatic Art":                    "DRA",
	"East Asian Studies":              "EAS",
	"Ecology":                         "ECL",
	"Economics":                       "ECN",
	"Education":                       "EDU",
	"Engineering":                     "ENG",
	"Engineering Aerospace Sci":       "EAE",
	"Engineering Biological Systems":  "EBS",
	"Engineering Biomedical":          "BIM",
	"Engineering Chemical":            "ECH",
	"Engineering Civil & Environ":     "ECI",
	"Engineering Computer Science":    "ECS",
	"Engineering Electrical & Compu":  "EEC",
	"Engineering Materials Science":   "EMS",
	"Engineering Mechanical & Aero":   "MAE",
	"English":                         "ENL",
	"Entomology":                      "ENT",
	"Environmental Science & Policy":  "ESP",
	"Environmental Toxicology":        "ETX",
	"Evolution and Ecology":           "EVE",
	"Exercise Biology":                "EXB",
	"Film Studies":                    "FMS",
	"Food Science & Technology":       "FST",
	"Forensic Science":                "FOR",
	"French":                          "FRE",
	"Freshman Seminar":                "FRS",
	"Geography":                       "GEO",
	"Geology":                         "GEL",
	"German":                          "GER",
	"Global Disease Biology":          "GDB",
	"Greek":                           "GRK",
	"Hebrew":                          "HEB",
	"Hindi/Urdu":                      "HIN",
	"History":                         "HIS",
	"Human Development":               "HDE",
	"Human Rights":                    "HMR",
	"Humanities":                      "HUM",
	"Hydrologic Science":              "HYD",
	"International Agricultural Dev":  "IAD",
	"International Relations":         "IRE",
	"Italian":                         "ITA",
	"Japanese":                        "JPN",
	"Jewish Studies":                  "JST",
	"Landscape Architecture":          "LDA",
	"Latin":                           "LAT",
	"Law":                             "LAW",
	"Linguistics":                     "LIN",
	"Management":                      "MGT",
	"Mathematics":                     "MAT",
	"Medieval Studies":                "MST",
	"Microbiology":                    "MIC",
	"Middle East/South Asian Std":     "MSA",
	"Military Science":                "MSC",
	"Molecular and Cellular Biology":  "MCB",
	"Music":                           "MUS",
	"Native American Studies":         "NAS",
	"Nematology":                      "NEM",
	"Neurobiology, Physio & Behavior": "NPB",
	"Nursing":                         "NRS",
	"Nutrition":                       "NUT",
	"Philosophy":                      "PHI",
	"Physical Education":              "PHE",
	"Physics":                         "PHY",
	"Plant Biology":                   "PLB",
	"Plant Pathology":                 "PLP",
	"Plant Science":                   "PLS",
	"Political Science":               "POL",
	"Portuguese":                      "POR",
	"Professional Accountancy":        "ACC",
	"Psychology":                      "PSC",
	"Religious Studies":               "RST",
	"Russian":                         "RUS",
	"Science & Technology Studies":    "STS",
	"Sociology":                       "SOC",
	"Soil Science":                    "SSC",
	"Spanish":                         "SPA",
	"Statistics":                      "STA",
	"Sustainable Ag & Food Sys":       "SAF",
	"Textiles & Clothing":             "TXC",
	"University Writing Program":      "UWP",
	"Veterinary Medicine":             "VMD",
	"Viticulture & Enology":           "VEN",
	"Wildlife, Fish & Conserv Biol":   "WFC",
	"Women's Studies":                 "WMS",
}

var subjectNamesByCode = func() map[string]string {
	out := make(map[string]string, len(SubjectCodesByName))
	for name, code := range SubjectCodesByName {
		out[code] = name
	}
	return out
}()
