package summary

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// unknownPlace labels rows whose location has no country or city name.
const unknownPlace = "Unknown"

// Narrative renders the summary as English sentences.
//
// With no rows it only reports zero infections: there is no most common country or city to name.
func Narrative(s CountSummary) string {
	p := message.NewPrinter(language.English)

	if s.Total == 0 {
		return "No ransomware-infected devices were found.\n"
	}

	var b strings.Builder
	p.Fprintf(&b, "There %s %d %s infected with ransomware across %d %s.\n",
		plural(s.Total, "is", "are"), s.Total, plural(s.Total, "device", "devices"),
		len(s.Countries), plural(len(s.Countries), "country", "countries"))

	b.WriteString(leaderSentence(p, s.TopCountry, "country", "countries"))
	b.WriteString(leaderSentence(p, s.TopCity, "city", "cities"))

	p.Fprintf(&b, "Per country, the mean number of infected devices is %.2f, the median is %.2f and the standard deviation is %.2f.\n",
		s.Stats.Mean, s.Stats.Median, s.Stats.StdDev)

	return b.String()
}

// leaderSentence names the most common place, branching on a single winner or a tie.
func leaderSentence(p *message.Printer, w Winner, singular, pluralNoun string) string {
	switch w := w.(type) {
	case SingleWinner:
		return p.Sprintf("The %s with the most infections is %s with %d infected %s.\n",
			singular, label(w.Name), w.Count, plural(w.Count, "device", "devices"))
	case TiedWinners:
		names := make([]string, 0, len(w.Names))
		for _, n := range w.Names {
			names = append(names, label(n))
		}
		return p.Sprintf("The %s with the most infections are %s with %d infected %s each.\n",
			pluralNoun, strings.Join(names, ", "), w.Count, plural(w.Count, "device", "devices"))
	}
	return ""
}

func label(name string) string {
	if name == "" {
		return unknownPlace
	}
	return name
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
