package sandbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/gymbooking/internal/domain"
)

// DemoEmail and DemoPassword log into the seeded verified account.
const (
	DemoEmail    = "demo@gym.local"
	DemoPassword = "password"
)

var classNamespace = uuid.MustParse("5b0c5a0e-8f0e-4d55-9a8e-2f6f3c1d7a10")

type slot struct {
	name       string
	discipline string
	start      string
	minutes    int
	location   string
	instructor string
	capacity   int
}

var weeklySlots = []slot{
	{"Sunrise Flow", "Yoga", "07:00", 60, "Downtown", "Maya", 15},
	{"Power Spin", "Spin", "08:00", 45, "Riverside", "Leo", 20},
	{"Strength Basics", "Strength", "12:00", 50, "Downtown", "", 12},
	{"HIIT Express", "HIIT", "18:00", 30, "Uptown", "Sam", 2},
	{"Evening Pilates", "Pilates", "19:30", 55, "Riverside", "Ana", 10},
}

// SeedClasses builds a week of classes starting on from. IDs are stable for a given date.
func SeedClasses(from time.Time, days int) []domain.GymClass {
	out := make([]domain.GymClass, 0, days*len(weeklySlots))
	for d := 0; d < days; d++ {
		day := from.AddDate(0, 0, d)
		date := day.Format(domain.DateLayout)
		for _, sl := range weeklySlots {
			start, _ := time.Parse("15:04", sl.start)
			duration := sl.minutes
			class := domain.GymClass{
				ID:          uuid.NewSHA1(classNamespace, []byte(date+" "+sl.start+" "+sl.name)).String(),
				Name:        sl.name,
				Discipline:  sl.discipline,
				Day:         day.Weekday().String(),
				StartTime:   sl.start,
				EndTime:     start.Add(time.Duration(sl.minutes) * time.Minute).Format("15:04"),
				Location:    sl.location,
				MaxCapacity: sl.capacity,
				DurationMin: &duration,
				ClassDate:   date,
			}
			if sl.instructor != "" {
				instructor := sl.instructor
				class.Instructor = &instructor
			}
			out = append(out, class)
		}
	}
	return out
}

// Seed fills s with a week of classes from today and the demo account.
func Seed(s *Store) error {
	s.AddClasses(SeedClasses(s.now(), 7)...)
	if _, err := s.Register(DemoEmail, DemoPassword); err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}
	s.MarkVerified(DemoEmail)
	return nil
}
