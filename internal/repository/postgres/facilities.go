package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

type FacilityRepo struct {
	db DB
}

func (r *FacilityRepo) Get(ctx context.Context, id int64) (*domain.Facility, error) {
	const op = "postgres.FacilityRepo.Get"

	var (
		f        domain.Facility
		schedule []byte
	)

	err := r.db.QueryRow(ctx,
		`SELECT id, name, timezone, schedule
       	 FROM facilities WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.Name, &f.Timezone, &schedule)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &f.Schedule); err != nil {
			return nil, fmt.Errorf("%s: decode schedule: %w", op, err)
		}
	}

	return &f, nil
}
