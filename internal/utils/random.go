package utils

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}
var teamPlaces = []string{
	"珠江", "白云", "天河", "越秀", "海珠", "番禺", "黄埔", "荔湾", "南沙", "从化",
}

func GenerateRandomChineseName(rng *rand.Rand) string {
	surname := commonSurnames[rng.Intn(len(commonSurnames))]
	nameLength := rng.Intn(2) + 1

	var sb strings.Builder
	sb.WriteString(surname)
	for i := 0; i < nameLength; i++ {
		sb.WriteString(commonNameCharacters[rng.Intn(len(commonNameCharacters))])
	}
	return sb.String()
}

func GenerateRandomTeamName(rng *rand.Rand) string {
	return teamPlaces[rng.Intn(len(teamPlaces))] + "龙舟队"
}

// PinyinSlug 将中文名转成拼音，用作导出文件名，空格分隔的部分用 - 连接
// 非 ASCII 且无法转换的字符会被忽略
func PinyinSlug(chineseName string) string {
	args := pinyin.NewArgs()
	args.Fallback = func(r rune, a pinyin.Args) []string {
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return []string{strings.ToLower(string(r))}
		}
		return nil
	}

	words := make([]string, 0)
	for _, name := range strings.Fields(chineseName) {
		var sb strings.Builder
		for _, word := range pinyin.LazyPinyin(name, args) {
			sb.WriteString(word)
		}
		if sb.Len() > 0 {
			words = append(words, sb.String())
		}
	}
	if len(words) == 0 {
		return "team"
	}
	return strings.Join(words, "-")
}

// GenerateRandomPaddler 生成体重在合理范围内的随机桨手，约一半的桨手带有计时赛成绩
func GenerateRandomPaddler(rng *rand.Rand) *domain.Paddler {
	p := &domain.Paddler{
		Name: GenerateRandomChineseName(rng),
	}

	if rng.Intn(3) == 0 {
		p.Gender = domain.GenderFemale
		p.Weight = roundWeight(48 + rng.Float64()*22)
	} else {
		p.Gender = domain.GenderMale
		p.Weight = roundWeight(60 + rng.Float64()*30)
	}

	switch rng.Intn(4) {
	case 0:
		p.Side = domain.SideLeft
	case 1:
		p.Side = domain.SideRight
	default:
		p.Side = domain.SideBoth
	}

	if rng.Intn(2) == 0 {
		p.TTResults = roundWeight(95 + rng.Float64()*35)
	}

	return p
}

func roundWeight(w float64) float64 {
	return math.Round(w*10) / 10
}

// GenerateRandomRoster 生成 n 个名字互不相同的桨手
// 名字重复时加上数字后缀，保证导出再导入时不会互相覆盖
func GenerateRandomRoster(rng *rand.Rand, n int) []*domain.Paddler {
	used := make(map[string]int, n)
	roster := make([]*domain.Paddler, 0, n)

	for i := 0; i < n; i++ {
		p := GenerateRandomPaddler(rng)
		if cnt, ok := used[p.Name]; ok {
			used[p.Name] = cnt + 1
			p.Name = fmt.Sprintf("%s%d", p.Name, cnt+1)
		}
		used[p.Name]++
		roster = append(roster, p)
	}

	return roster
}

// GenerateRandomSession 生成一支带有随机名单的队伍，船上为空
func GenerateRandomSession(rng *rand.Rand, paddlers int) (*domain.Session, error) {
	s := domain.NewSession(GenerateRandomTeamName(rng))
	for _, p := range GenerateRandomRoster(rng, paddlers) {
		if err := s.AddPaddler(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}
