package resolver

// mlbTeams expands local abbreviations to the full names quote providers use.
var mlbTeams = map[string]string{
	"ARI": "Arizona Diamondbacks",
	"ATL": "Atlanta Braves",
	"BAL": "Baltimore Orioles",
	"BOS": "Boston Red Sox",
	"CHC": "Chicago Cubs",
	"CWS": "Chicago White Sox",
	"CIN": "Cincinnati Reds",
	"CLE": "Cleveland Guardians",
	"COL": "Colorado Rockies",
	"DET": "Detroit Tigers",
	"HOU": "Houston Astros",
	"KC":  "Kansas City Royals",
	"LAA": "Los Angeles Angels",
	"LAD": "Los Angeles Dodgers",
	"MIA": "Miami Marlins",
	"MIL": "Milwaukee Brewers",
	"MIN": "Minnesota Twins",
	"NYM": "New York Mets",
	"NYY": "New York Yankees",
	"OAK": "Oakland Athletics",
	"PHI": "Philadelphia Phillies",
	"PIT": "Pittsburgh Pirates",
	"SD":  "San Diego Padres",
	"SEA": "Seattle Mariners",
	"SF":  "San Francisco Giants",
	"STL": "St. Louis Cardinals",
	"TB":  "Tampa Bay Rays",
	"TEX": "Texas Rangers",
	"TOR": "Toronto Blue Jays",
	"WSH": "Washington Nationals",

	// alternate abbreviations seen in feeds
	"AZ":  "Arizona Diamondbacks",
	"CHW": "Chicago White Sox",
	"KCR": "Kansas City Royals",
	"SDP": "San Diego Padres",
	"SFG": "San Francisco Giants",
	"TBR": "Tampa Bay Rays",
	"WSN": "Washington Nationals",
}

// DefaultAliases returns a copy of the built-in MLB abbreviation table.
func DefaultAliases() map[string]string {
	out := make(map[string]string, len(mlbTeams))
	for k, v := range mlbTeams {
		out[k] = v
	}
	return out
}
