package bot

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sifan077/linkbot/internal/app/conversation"
	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/sifan077/linkbot/internal/app/service"
	"github.com/sifan077/linkbot/internal/infra/vkcc"
)

const (
	buttonTitleLength = 40
	timeLayout        = "2006-01-02 15:04 UTC"
)

var countryNames = map[int]string{
	1:  "Russia",
	2:  "Ukraine",
	3:  "Belarus",
	4:  "Kazakhstan",
	5:  "Germany",
	7:  "Finland",
	10: "USA",
	13: "France",
	14: "Italy",
	17: "Spain",
}

var cityNames = map[int]string{
	1:  "Moscow",
	2:  "Saint Petersburg",
	3:  "Novosibirsk",
	4:  "Yekaterinburg",
	56: "Kazan",
	66: "Nizhny Novgorod",
	99: "Ufa",
}

func welcomeView() conversation.Reply {
	return conversation.Reply{
		Text: "Hi! I shorten links with vk.cc and keep them for you.\n\n" +
			"Shorten links: send one link or a list, one per line.\n" +
			"My links: browse, rename, delete and see click statistics.",
		Keyboard: conversation.MenuKeyboard(),
	}
}

func helpView() conversation.Reply {
	return conversation.Reply{
		Text: "Commands:\n" +
			"/shorten - shorten one or more links\n" +
			"/links - your saved links\n" +
			"/skip - keep the default title for the current link\n" +
			"/cancel - stop the current action\n" +
			"/start - main menu",
		Keyboard: conversation.MenuKeyboard(),
	}
}

func textView(text string) conversation.Reply {
	return conversation.Reply{Text: text, Keyboard: conversation.MenuKeyboard()}
}

// ListView renders one page of links with a button per link and page navigation.
func ListView(page *service.LinkPage) conversation.Reply {
	if page == nil || page.Total == 0 {
		return conversation.Reply{
			Text: "You have no links yet.",
			Keyboard: [][]conversation.Button{
				{{Label: "Shorten links", Data: conversation.ActionShorten}},
			},
		}
	}

	text := fmt.Sprintf("Your links: %d (page %d of %d)", page.Total, page.Page+1, page.TotalPages)

	kb := make([][]conversation.Button, 0, len(page.Links)+2)
	for _, l := range page.Links {
		kb = append(kb, []conversation.Button{{
			Label: shorten(l.DisplayTitle(), buttonTitleLength),
			Data:  conversation.ActionData(conversation.ActionCard, l.ID),
		}})
	}

	var nav []conversation.Button
	if page.Page > 0 {
		nav = append(nav, conversation.Button{Label: "< Prev", Data: conversation.ActionData(conversation.ActionLinks, int64(page.Page-1))})
	}
	if page.Page+1 < page.TotalPages {
		nav = append(nav, conversation.Button{Label: "Next >", Data: conversation.ActionData(conversation.ActionLinks, int64(page.Page+1))})
	}
	if len(nav) > 0 {
		kb = append(kb, nav)
	}
	kb = append(kb, []conversation.Button{{Label: "Menu", Data: conversation.ActionMenu}})

	return conversation.Reply{Text: text, Keyboard: kb}
}

// CardView renders a single link with its actions.
func CardView(link *model.Link) conversation.Reply {
	text := fmt.Sprintf("%s\n\nShort link: %s\nOriginal: %s\nCreated: %s",
		link.DisplayTitle(), link.ShortURL, link.OriginalURL, link.CreatedAt.UTC().Format(timeLayout))

	return conversation.Reply{
		Text: text,
		Keyboard: [][]conversation.Button{
			{
				{Label: "Stats", Data: conversation.ActionData(conversation.ActionStats, link.ID)},
				{Label: "Rename", Data: conversation.ActionData(conversation.ActionRename, link.ID)},
				{Label: "Delete", Data: conversation.ActionData(conversation.ActionDelete, link.ID)},
			},
			{{Label: "Back to list", Data: conversation.ActionData(conversation.ActionLinks, 0)}},
		},
	}
}

func deleteConfirmView(link *model.Link) conversation.Reply {
	return conversation.Reply{
		Text: fmt.Sprintf("Delete %s (%s)?", link.DisplayTitle(), link.ShortURL),
		Keyboard: [][]conversation.Button{{
			{Label: "Yes, delete", Data: conversation.ActionData(conversation.ActionDeleteYes, link.ID)},
			{Label: "No", Data: conversation.ActionData(conversation.ActionDeleteNo, link.ID)},
		}},
	}
}

func statsKeyboard(link *model.Link) [][]conversation.Button {
	return [][]conversation.Button{{
		{Label: "Refresh", Data: conversation.ActionData(conversation.ActionRefresh, link.ID)},
		{Label: "Back", Data: conversation.ActionData(conversation.ActionCard, link.ID)},
	}}
}

// StatsView renders a snapshot. A snapshot without views reads "no data yet".
func StatsView(link *model.Link, snap *model.StatsSnapshot) conversation.Reply {
	return conversation.Reply{Text: FormatStats(link.ShortURL, snap), Keyboard: statsKeyboard(link)}
}

func statsErrorView(link *model.Link, err error) conversation.Reply {
	text := fmt.Sprintf("Could not load statistics for %s.\nTry again later.", link.ShortURL)
	var pe *vkcc.ProviderError
	if errors.As(err, &pe) {
		text = fmt.Sprintf("Could not load statistics for %s: %s\nTry again later.", link.ShortURL, pe.Reason())
	}
	return conversation.Reply{Text: text, Keyboard: statsKeyboard(link)}
}

// FormatStats renders views, sex/age shares and geography for a short link.
func FormatStats(shortURL string, snap *model.StatsSnapshot) string {
	if snap.Empty() {
		return fmt.Sprintf("Statistics for %s: no data yet. Numbers show up after the first clicks.", shortURL)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Statistics for %s\nViews: %d\n", shortURL, snap.TotalViews)

	if len(snap.Demographics) > 0 {
		type split struct{ male, female int }
		var order []string
		byAge := make(map[string]*split)
		for _, bin := range snap.Demographics {
			s, ok := byAge[bin.AgeBracket]
			if !ok {
				s = &split{}
				byAge[bin.AgeBracket] = s
				order = append(order, bin.AgeBracket)
			}
			if bin.Sex == model.SexMale {
				s.male += bin.Views
			} else {
				s.female += bin.Views
			}
		}

		b.WriteString("\nSex and age:\n")
		for _, age := range order {
			s := byAge[age]
			total := s.male + s.female
			if total == 0 {
				continue
			}
			fmt.Fprintf(&b, "- %s: male %.0f%%, female %.0f%%\n", age,
				percent(s.male, total), percent(s.female, total))
		}
	}

	if len(snap.Regions) > 0 {
		b.WriteString("\nCountries:\n")
		for _, r := range snap.Regions {
			fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", lookupName(countryNames, r.RegionID, "Unknown country"),
				r.Views, percent(r.Views, snap.TotalViews))
		}
	}

	if len(snap.Cities) > 0 {
		b.WriteString("\nCities:\n")
		for _, c := range snap.Cities {
			fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", lookupName(cityNames, c.CityID, "Unknown city"),
				c.Views, percent(c.Views, snap.TotalViews))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func lookupName(names map[int]string, id int, unknown string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("%s (ID %d)", unknown, id)
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
