package analyze

import "strings"

// documentTypePatterns maps semantic categories to filename keywords. Used as
// a pre-classification fallback when the model does not return a type.
var documentTypePatterns = []struct {
	docType  string
	keywords []string
}{
	{"Motion", []string{"motion", "mtd", "mtc", "mts", "mtv"}},
	{"Response", []string{"response", "opposition", "reply", "answer"}},
	{"Complaint", []string{"complaint", "petition", "amended complaint"}},
	{"Order", []string{"order", "ruling", "judgment", "decree"}},
	{"Notice", []string{"notice", "notification", "noa"}},
	{"Evidence", []string{"exhibit", "evidence", "attachment", "affidavit"}},
	{"Research", []string{"memo", "research", "analysis", "brief"}},
}

// ClassifyFilename guesses the document type from filename keywords. Returns
// an empty string when nothing matches.
func ClassifyFilename(filename string) string {
	name := strings.ToLower(filename)
	for _, p := range documentTypePatterns {
		for _, kw := range p.keywords {
			if strings.Contains(name, kw) {
				return p.docType
			}
		}
	}
	return ""
}
