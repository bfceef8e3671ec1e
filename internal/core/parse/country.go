package parse

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/melih/tunnelwatch/internal/core/domain"
)

// countryNames is advisory: provider codes outside it resolve to Unknown.
// Provider codes are not strictly ISO 3166 ("uk" rather than "gb").
var countryNames = map[string]string{
	"ad": "Andorra", "ae": "UAE", "af": "Afghanistan", "al": "Albania",
	"am": "Armenia", "ao": "Angola", "ar": "Argentina", "at": "Austria",
	"au": "Australia", "az": "Azerbaijan", "ba": "Bosnia", "bb": "Barbados",
	"bd": "Bangladesh", "be": "Belgium", "bg": "Bulgaria", "bh": "Bahrain",
	"bm": "Bermuda", "bn": "Brunei", "bo": "Bolivia", "br": "Brazil",
	"bs": "Bahamas", "bt": "Bhutan", "bw": "Botswana", "by": "Belarus",
	"bz": "Belize", "ca": "Canada", "ch": "Switzerland", "ci": "Ivory Coast",
	"cl": "Chile", "cm": "Cameroon", "cn": "China", "co": "Colombia",
	"cr": "Costa Rica", "cy": "Cyprus", "cz": "Czechia", "de": "Germany",
	"dk": "Denmark", "do": "Dominican Republic", "dz": "Algeria", "ec": "Ecuador",
	"ee": "Estonia", "eg": "Egypt", "es": "Spain", "et": "Ethiopia",
	"fi": "Finland", "fj": "Fiji", "fr": "France", "gb": "United Kingdom",
	"ge": "Georgia", "gh": "Ghana", "gl": "Greenland", "gr": "Greece",
	"gt": "Guatemala", "gu": "Guam", "hk": "Hong Kong", "hn": "Honduras",
	"hr": "Croatia", "hu": "Hungary", "id": "Indonesia", "ie": "Ireland",
	"il": "Israel", "im": "Isle of Man", "in": "India", "iq": "Iraq",
	"is": "Iceland", "it": "Italy", "je": "Jersey", "jm": "Jamaica",
	"jo": "Jordan", "jp": "Japan", "ke": "Kenya", "kg": "Kyrgyzstan",
	"kh": "Cambodia", "km": "Comoros", "kr": "South Korea", "kw": "Kuwait",
	"ky": "Cayman Islands", "kz": "Kazakhstan", "la": "Laos", "lb": "Lebanon",
	"li": "Liechtenstein", "lk": "Sri Lanka", "lt": "Lithuania", "lu": "Luxembourg",
	"lv": "Latvia", "ly": "Libya", "ma": "Morocco", "mc": "Monaco",
	"md": "Moldova", "me": "Montenegro", "mk": "North Macedonia", "mm": "Myanmar",
	"mn": "Mongolia", "mo": "Macau", "mr": "Mauritania", "mt": "Malta",
	"mu": "Mauritius", "mx": "Mexico", "my": "Malaysia", "mz": "Mozambique",
	"na": "Namibia", "ng": "Nigeria", "ni": "Nicaragua", "nl": "Netherlands",
	"no": "Norway", "np": "Nepal", "nz": "New Zealand", "om": "Oman",
	"pa": "Panama", "pe": "Peru", "pg": "Papua New Guinea", "ph": "Philippines",
	"pk": "Pakistan", "pl": "Poland", "pr": "Puerto Rico", "pt": "Portugal",
	"py": "Paraguay", "qa": "Qatar", "ro": "Romania", "rs": "Serbia",
	"rw": "Rwanda", "sa": "Saudi Arabia", "se": "Sweden", "sg": "Singapore",
	"si": "Slovenia", "sk": "Slovakia", "sn": "Senegal", "so": "Somalia",
	"sv": "El Salvador", "td": "Chad", "tg": "Togo", "th": "Thailand",
	"tn": "Tunisia", "tr": "Turkey", "tt": "Trinidad and Tobago", "tw": "Taiwan",
	"tz": "Tanzania", "ua": "Ukraine", "ug": "Uganda", "uk": "United Kingdom",
	"us": "United States", "uy": "Uruguay", "uz": "Uzbekistan", "ve": "Venezuela",
	"vn": "Vietnam", "za": "South Africa", "zm": "Zambia", "zw": "Zimbabwe",
}

// CountryName resolves a two-letter provider country code.
func CountryName(code string) string {
	if name, ok := countryNames[strings.ToLower(code)]; ok {
		return name
	}
	return domain.Unknown
}

// ArtifactNames parses configuration artifact file names of the form
// "<NNN>-<cc><rest>.<provider-domain>...", e.g. "007-de512.nordvpn.com.tcp.ovpn".
type ArtifactNames struct {
	pattern *regexp.Regexp
}

func NewArtifactNames(providerDomain string) ArtifactNames {
	expr := `^\d{3}-([a-zA-Z]{2})[0-9a-zA-Z]*`
	if providerDomain != "" {
		expr += `\.` + regexp.QuoteMeta(providerDomain)
	}
	return ArtifactNames{pattern: regexp.MustCompile(expr)}
}

// CountryCode returns the lower-cased country code embedded in filename.
func (a ArtifactNames) CountryCode(filename string) (string, bool) {
	m := a.pattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// Location returns the country name for filename, or domain.Unknown.
func (a ArtifactNames) Location(filename string) string {
	code, ok := a.CountryCode(filename)
	if !ok {
		return domain.Unknown
	}
	return CountryName(code)
}

// RemoteAddress returns the host of the first "remote" directive in an
// OpenVPN style configuration.
func RemoteAddress(r io.Reader) (string, bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "remote" {
			return fields[1], true
		}
	}
	return "", false
}
