package scheduler

import (
	"fmt"
	"math/rand"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

func newPaddler(id string, weight float64, side domain.Side, gender domain.Gender) *domain.Paddler {
	return &domain.Paddler{
		ID:     id,
		Name:   "桨手" + id,
		Weight: weight,
		Side:   side,
		Gender: gender,
	}
}

// randomRoster 生成 n 名两边都可以划的桨手，男女交替
func randomRoster(rng *rand.Rand, n int) []*domain.Paddler {
	roster := make([]*domain.Paddler, n)
	for i := range roster {
		gender := domain.GenderMale
		if i%2 == 1 {
			gender = domain.GenderFemale
		}
		roster[i] = newPaddler(fmt.Sprintf("p%02d", i), float64(45+rng.Intn(400))/10+20, domain.SideBoth, gender)
	}
	return roster
}

// fillBoat 按座位顺序（0-0, 0-1, 1-0 ...）把桨手放到船上，不检查划桨边
func fillBoat(paddlers []*domain.Paddler) domain.Boat {
	var b domain.Boat
	for i, p := range paddlers {
		if i >= domain.SeatsNum {
			break
		}
		b[i/domain.Sides][i%domain.Sides] = p
	}
	return b
}

func boatIDs(b *domain.Boat) [domain.Rows][domain.Sides]string {
	var ids [domain.Rows][domain.Sides]string
	for i := 0; i < domain.Rows; i++ {
		for j := 0; j < domain.Sides; j++ {
			if b[i][j] != nil {
				ids[i][j] = b[i][j].ID
			}
		}
	}
	return ids
}
