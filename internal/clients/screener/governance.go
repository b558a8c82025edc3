package screener

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aristath/screener/internal/domain"
)

// Announcement dates on company pages ("16 Oct 2026")
const announcementLayout = "2 Jan 2006"

var (
	pledgeLabelRe   = regexp.MustCompile(`(?i)pledged`)
	relatedPartyRe  = regexp.MustCompile(`(?i)related\s+party`)
	auditorChangeRe = regexp.MustCompile(`(?i)(appointment|change|resignation)\s+of\s+(the\s+)?(statutory\s+)?auditor`)
	penaltyRe       = regexp.MustCompile(`(?i)(penalty|fine|show\s+cause|adjudication)`)
	revenueRowRe    = regexp.MustCompile(`(?i)^(sales|revenue)`)
	announcementRe  = regexp.MustCompile(`(\d{1,2}\s+[A-Z][a-z]{2}\s+\d{4})`)
	auditorFirmRe   = regexp.MustCompile(`(?i)\bM/s\.?\s*(.+)$`)
)

// governance extracts governance disclosures from a company page. Sections
// missing from the page are left unreported.
func governance(doc *goquery.Document) *domain.RawGovernance {
	raw := &domain.RawGovernance{}

	doc.Find("#top-ratios li, #shareholding tr").Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Find(".name, td.text").First().Text())
		value := strings.TrimSpace(s.Find(".number").First().Text())
		if value == "" {
			value = strings.TrimSpace(s.Find("td").Last().Text())
		}

		switch {
		case pledgeLabelRe.MatchString(label) && raw.PromoterPledgePct == nil:
			if pct, err := strconv.ParseFloat(strings.Trim(strings.ReplaceAll(value, ",", ""), "% "), 64); err == nil {
				raw.PromoterPledgePct = &pct
			}
		case relatedPartyRe.MatchString(label) && raw.RelatedParty == "":
			raw.RelatedParty = value
		}
	})

	doc.Find("#profit-loss table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if !revenueRowRe.MatchString(strings.TrimSpace(row.Find("td").First().Text())) {
			return true
		}
		cells := row.Find("td")
		for i := cells.Length() - 1; i > 0; i-- {
			if v := strings.TrimSpace(cells.Eq(i).Text()); v != "" {
				raw.Revenue = v
				break
			}
		}
		return false
	})

	announcements := doc.Find("#documents .documents.announcements ul li")
	if announcements.Length() > 0 {
		raw.AuditorsReported = true
		raw.PenaltiesReported = true
	}
	announcements.Each(func(_ int, item *goquery.Selection) {
		title := strings.Join(strings.Fields(item.Find("a").First().Text()), " ")
		date, ok := announcementDate(item.Text())
		if title == "" || !ok {
			return
		}

		switch {
		case auditorChangeRe.MatchString(title):
			// Every auditor announcement is a change event; the firm is named
			// when the title carries it
			raw.Auditors = append(raw.Auditors, domain.RawAuditor{Name: auditorFirm(title), AppointedOn: date, Change: true})
		case penaltyRe.MatchString(title):
			raw.Penalties = append(raw.Penalties, domain.RawPenalty{
				Date:        date,
				Authority:   "exchange disclosure",
				Description: title,
			})
		}
	})

	return raw
}

// auditorFirm returns the firm named in an auditor announcement ("M/s A & Co"),
// or the title itself
func auditorFirm(title string) string {
	if m := auditorFirmRe.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	return title
}

// announcementDate finds the announcement date and renders it as ISO
func announcementDate(text string) (string, bool) {
	m := announcementRe.FindString(text)
	if m == "" {
		return "", false
	}
	t, err := time.Parse(announcementLayout, m)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
