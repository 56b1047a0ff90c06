package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

var (
	rosterHeader   = []string{"Name", "Weight", "Side"}
	racePlanHeader = []string{"Plan", "Race", "Position", "Paddler Name", "Weight", "TT Results", "Gender", "Side"}
)

// WriteRoster 导出名单，格式与导入一致
func WriteRoster(w io.Writer, paddlers []*domain.Paddler) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rosterHeader); err != nil {
		return err
	}

	for _, p := range paddlers {
		record := []string{p.Name, formatFloat(p.Weight), string(p.Side)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

type RejectedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportReport struct {
	Added    int           `json:"added"`
	Updated  int           `json:"updated"`
	Rejected []RejectedRow `json:"rejected"`
}

type columns struct {
	name, weight, side, gender, tt int
}

// 表头大小写不敏感，Gender 和 TT Results 两列是可选的
func lookupColumns(header []string) (columns, error) {
	cols := columns{name: -1, weight: -1, side: -1, gender: -1, tt: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name", "paddler name":
			cols.name = i
		case "weight":
			cols.weight = i
		case "side":
			cols.side = i
		case "gender":
			cols.gender = i
		case "tt results", "tt":
			cols.tt = i
		}
	}

	if cols.name < 0 || cols.weight < 0 || cols.side < 0 {
		return cols, fmt.Errorf("%w: CSV 表头必须包含 Name, Weight, Side", domain.ErrValidation)
	}
	return cols, nil
}

// ImportRoster 将 CSV 中的桨手合并到名单中
// 同名桨手会被更新，无法识别的行会被跳过并记录在报告中
func ImportRoster(s *domain.Session, r io.Reader) (*ImportReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: CSV 文件为空", domain.ErrValidation)
		}
		return nil, err
	}
	cols, err := lookupColumns(header)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{Rejected: make([]RejectedRow, 0)}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, err
			}
			report.Rejected = append(report.Rejected, RejectedRow{Line: parseErr.StartLine, Reason: parseErr.Err.Error()})
			continue
		}
		// 空行会被 csv.Reader 跳过，所以行号要从 reader 中取
		line, _ := cr.FieldPos(0)
		if lo.EveryBy(record, func(v string) bool { return strings.TrimSpace(v) == "" }) {
			continue
		}

		p, reason := parsePaddler(record, cols)
		if reason != "" {
			report.Rejected = append(report.Rejected, RejectedRow{Line: line, Reason: reason})
			continue
		}

		if existing := s.FindPaddlerByName(p.Name); existing != nil {
			upd := domain.PaddlerUpdate{Weight: &p.Weight, Side: &p.Side}
			if cols.gender >= 0 && field(record, cols.gender) != "" {
				upd.Gender = &p.Gender
			}
			if cols.tt >= 0 && field(record, cols.tt) != "" {
				upd.TTResults = &p.TTResults
			}
			if _, err := s.UpdatePaddler(existing.ID, upd); err != nil {
				report.Rejected = append(report.Rejected, RejectedRow{Line: line, Reason: err.Error()})
				continue
			}
			report.Updated++
			continue
		}

		if err := s.AddPaddler(p); err != nil {
			report.Rejected = append(report.Rejected, RejectedRow{Line: line, Reason: err.Error()})
			continue
		}
		report.Added++
	}

	return report, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parsePaddler(record []string, cols columns) (*domain.Paddler, string) {
	name := field(record, cols.name)
	if name == "" {
		return nil, "缺少姓名"
	}

	weight, err := strconv.ParseFloat(field(record, cols.weight), 64)
	if err != nil || weight <= 0 {
		return nil, fmt.Sprintf("体重不合法: %q", field(record, cols.weight))
	}

	side := domain.Side(strings.ToLower(field(record, cols.side)))
	if side != domain.SideLeft && side != domain.SideRight && side != domain.SideBoth {
		return nil, fmt.Sprintf("无法识别的划桨边: %q", field(record, cols.side))
	}

	gender := domain.GenderMale
	switch strings.ToUpper(field(record, cols.gender)) {
	case "", "M":
	case "F":
		gender = domain.GenderFemale
	default:
		return nil, fmt.Sprintf("无法识别的性别: %q", field(record, cols.gender))
	}

	var tt float64
	if raw := field(record, cols.tt); raw != "" {
		tt, err = strconv.ParseFloat(raw, 64)
		if err != nil || tt < 0 {
			return nil, fmt.Sprintf("计时赛成绩不合法: %q", raw)
		}
	}

	return &domain.Paddler{Name: name, Weight: weight, Side: side, Gender: gender, TTResults: tt}, ""
}

// WriteRacePlans 导出比赛方案，每个方案的每一场比赛列出 20 个座位，之后是该场轮空的桨手
func WriteRacePlans(w io.Writer, plans []*domain.RacePlan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(racePlanHeader); err != nil {
		return err
	}

	for planIdx, plan := range plans {
		planNo := strconv.Itoa(planIdx + 1)
		for raceIdx, race := range plan.Races {
			raceNo := raceIdx + 1
			for row := 0; row < domain.Rows; row++ {
				for side := 0; side < domain.Sides; side++ {
					p := race.Boat[row][side]
					if p == nil {
						continue
					}
					record := append([]string{planNo, strconv.Itoa(raceNo), seatLabel(row, side)}, paddlerColumns(p)...)
					if err := cw.Write(record); err != nil {
						return err
					}
				}
			}

			for _, part := range plan.Stats.Participation {
				if !lo.Contains(part.SitOutRaces, raceNo) {
					continue
				}
				record := append([]string{planNo, strconv.Itoa(raceNo), "SIT-OUT"}, paddlerColumns(part.Paddler)...)
				if err := cw.Write(record); err != nil {
					return err
				}
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// seatLabel 形如 1L、10R，排号从 1 开始
func seatLabel(row, side int) string {
	if side == domain.SeatLeft {
		return fmt.Sprintf("%dL", row+1)
	}
	return fmt.Sprintf("%dR", row+1)
}

func paddlerColumns(p *domain.Paddler) []string {
	tt := ""
	if p.TTResults > 0 {
		tt = formatFloat(p.TTResults)
	}
	return []string{p.Name, formatFloat(p.Weight), tt, string(p.Gender), string(p.Side)}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
