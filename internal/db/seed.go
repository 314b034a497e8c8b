package db

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Spok95/ecoreport-bot/internal/models"
)

// Seed — справочник школ/классов и назначения ролей.
//
//	schools:
//	  - name: Школа №5
//	    curator: 1001
//	    classes:
//	      - name: 8В
//	        curator: 2001
//	users:
//	  - chat_id: 2001
//	    role: curator
type Seed struct {
	Schools []SeedSchool `yaml:"schools"`
	Users   []SeedUser   `yaml:"users"`
}

type SeedSchool struct {
	Name    string      `yaml:"name"`
	Curator *int64      `yaml:"curator"`
	Classes []SeedClass `yaml:"classes"`
}

type SeedClass struct {
	Name    string `yaml:"name"`
	Curator *int64 `yaml:"curator"`
}

type SeedUser struct {
	ChatID int64       `yaml:"chat_id"`
	Role   models.Role `yaml:"role"`
	// School/Class — привязка пользователя к классу по именам
	School string `yaml:"school"`
	Class  string `yaml:"class"`
}

func ParseSeed(r io.Reader) (*Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for _, sc := range s.Schools {
		if sc.Name == "" {
			return nil, fmt.Errorf("seed: school without name")
		}
		for _, c := range sc.Classes {
			if c.Name == "" {
				return nil, fmt.Errorf("seed: class without name in %q", sc.Name)
			}
		}
	}
	for _, u := range s.Users {
		switch u.Role {
		case models.Student, models.Curator, models.SchoolCurator, models.Admin:
		default:
			return nil, fmt.Errorf("seed: user %d: unknown role %q", u.ChatID, u.Role)
		}
		if u.ChatID == 0 {
			return nil, fmt.Errorf("seed: user without chat_id")
		}
		if (u.School == "") != (u.Class == "") {
			return nil, fmt.Errorf("seed: user %d: school and class go together", u.ChatID)
		}
	}
	return &s, nil
}

// LoadSeedFile читает и применяет файл; повторный запуск ничего не дублирует.
func (s *Store) LoadSeedFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	seed, err := ParseSeed(f)
	if err != nil {
		return err
	}
	return s.ApplySeed(ctx, seed)
}

func (s *Store) ApplySeed(ctx context.Context, seed *Seed) error {
	classIDs := map[[2]string]int64{}
	for _, sc := range seed.Schools {
		schoolID, err := s.UpsertSchool(ctx, sc.Name, sc.Curator)
		if err != nil {
			return fmt.Errorf("upsert school %q: %w", sc.Name, err)
		}
		for _, c := range sc.Classes {
			id, err := s.UpsertClass(ctx, schoolID, c.Name, c.Curator)
			if err != nil {
				return fmt.Errorf("upsert class %q/%q: %w", sc.Name, c.Name, err)
			}
			classIDs[[2]string{sc.Name, c.Name}] = id
		}
	}
	for _, u := range seed.Users {
		var classID *int64
		if u.Class != "" {
			id, ok := classIDs[[2]string{u.School, u.Class}]
			if !ok {
				return fmt.Errorf("seed: user %d: class %q/%q not in seed", u.ChatID, u.School, u.Class)
			}
			classID = &id
		}
		if err := s.SetUserRole(ctx, u.ChatID, u.Role, classID); err != nil {
			return fmt.Errorf("set role for %d: %w", u.ChatID, err)
		}
	}
	return nil
}
