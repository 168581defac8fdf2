package db

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seedCode struct {
	Color    string
	Meaning  [2]string // left, right
	Category string
	Context  string
}

// The catalog is reference data: every color yields two rows, one per
// position. Left traditionally signals the active role, right the passive.
var seedCatalog = []seedCode{
	{"navy blue", [2]string{"Seeking connection (active)", "Seeking connection (passive)"}, "classic", "One of the oldest and most widely recognized codes."},
	{"light blue", [2]string{"Oral (giving)", "Oral (receiving)"}, "classic", ""},
	{"red", [2]string{"Intense play (top)", "Intense play (bottom)"}, "classic", "Historically among the first colors in the code."},
	{"black", [2]string{"Heavy leather (dominant)", "Heavy leather (submissive)"}, "leather", "Core of leather community signaling since the 1970s."},
	{"grey", [2]string{"Bondage (rigger)", "Bondage (rope bunny)"}, "leather", ""},
	{"white", [2]string{"New to the scene (mentor)", "New to the scene (looking for guidance)"}, "social", "Often worn by newcomers seeking community."},
	{"green", [2]string{"Daddy", "Looking for a daddy"}, "social", ""},
	{"olive", [2]string{"Military (active)", "Military (admirer)"}, "uniform", ""},
	{"yellow", [2]string{"Watersports (giving)", "Watersports (receiving)"}, "kink", ""},
	{"orange", [2]string{"Anything goes (top)", "Anything goes (bottom)"}, "social", "The wildcard of the code."},
	{"purple", [2]string{"Piercing (piercer)", "Piercing (piercee)"}, "kink", ""},
	{"lavender", [2]string{"Drag (performer)", "Drag (admirer)"}, "social", ""},
	{"brown", [2]string{"Scat (top)", "Scat (bottom)"}, "kink", ""},
	{"pink", [2]string{"Toys (giving)", "Toys (receiving)"}, "kink", ""},
	{"hunter green", [2]string{"Outdoors (initiator)", "Outdoors (companion)"}, "social", ""},
	{"charcoal", [2]string{"Rubber (top)", "Rubber (bottom)"}, "leather", ""},
	{"gold", [2]string{"Seeking a third (couple)", "Seeking a couple (single)"}, "social", ""},
	{"teal", [2]string{"Cock and ball play (top)", "Cock and ball play (bottom)"}, "kink", ""},
	{"maroon", [2]string{"Blood play (top)", "Blood play (bottom)"}, "kink", ""},
	{"coral", [2]string{"Foot play (worshipper)", "Foot play (worshipped)"}, "kink", ""},
}

var seedReportTypes = []string{"harassment", "fake_profile", "inappropriate_content"}

// SeedTestData resets the database and populates it with demo data.
//
// Behavior:
//  1. Clears all engine tables.
//  2. Seeds the full hanky code catalog (two rows per color).
//  3. Creates 20 demo users with hashed passwords and 2-5 code assignments.
//  4. Generates matches across a range of statuses, with messages on the
//     accepted ones and a couple of pending abuse reports.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(gdb *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	tables := []string{"abuse_reports", "messages", "matches", "user_hanky_codes", "hanky_codes", "users"}
	for _, t := range tables {
		if err := gdb.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}

	switch gdb.Dialector.Name() {
	case "mysql":
		for _, t := range tables {
			gdb.Exec(fmt.Sprintf("ALTER TABLE %s AUTO_INCREMENT = 1", t))
		}
	case "sqlite":
		for _, t := range tables {
			gdb.Exec("DELETE FROM sqlite_sequence WHERE name = ?", t)
		}
	}

	log.Println("Cleared existing data")

	// --- Seed catalog ---
	var codes []HankyCode
	for _, sc := range seedCatalog {
		for i, position := range []string{"left", "right"} {
			codes = append(codes, HankyCode{
				Color:           sc.Color,
				Position:        position,
				Meaning:         sc.Meaning[i],
				Category:        sc.Category,
				CulturalContext: sc.Context,
			})
		}
	}
	if err := gdb.Create(&codes).Error; err != nil {
		return fmt.Errorf("failed to seed hanky codes: %w", err)
	}
	log.Printf("Seeded %d hanky codes.", len(codes))

	// --- Seed Users ---
	cities := []string{"San Francisco", "Berlin", "London", "Amsterdam", "New York"}
	var users []User
	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		visibility := "public"
		if i%7 == 0 {
			visibility = "community"
		}

		users = append(users, User{
			Username:          fmt.Sprintf("user%d", i),
			Email:             fmt.Sprintf("user%d@example.com", i),
			PasswordHash:      string(hash),
			DisplayName:       fmt.Sprintf("Demo User %d", i),
			Age:               21 + r.Intn(35),
			Bio:               "Demo profile.",
			LocationCity:      cities[r.Intn(len(cities))],
			ProfileVisibility: visibility,
			LastActive:        time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		})
	}
	if err := gdb.Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Printf("Seeded %d users.", len(users))

	// --- Assign codes (2-5 per user) ---
	for _, u := range users {
		n := 2 + r.Intn(4)
		seen := map[uint64]bool{}
		for len(seen) < n {
			code := codes[r.Intn(len(codes))]
			if seen[code.ID] {
				continue
			}
			seen[code.ID] = true

			assignment := UserHankyCode{
				UserID:      u.ID,
				HankyCodeID: code.ID,
				Position:    code.Position,
				Intensity:   1 + r.Intn(10),
			}
			if err := gdb.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "hanky_code_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"position", "intensity", "updated_at"}),
			}).Create(&assignment).Error; err != nil {
				return fmt.Errorf("failed to seed assignment: %w", err)
			}
		}
	}
	log.Println("Seeded code assignments.")

	// --- Seed Matches ---
	statuses := []string{MatchStatusPending, MatchStatusAccepted, MatchStatusAccepted, MatchStatusDeclined}
	var accepted []Match
	for i := 0; i < 15; i++ {
		a := users[r.Intn(len(users))].ID
		b := users[r.Intn(len(users))].ID
		if a == b {
			continue
		}
		low, high := a, b
		if low > high {
			low, high = high, low
		}

		shared, _ := json.Marshal([]uint64{codes[r.Intn(len(codes))].ID})
		m := Match{
			UserLowID:          low,
			UserHighID:         high,
			CompatibilityScore: 0.1 + r.Float64()*0.9,
			SharedCodeIDs:      string(shared),
			Status:             statuses[r.Intn(len(statuses))],
		}
		if err := gdb.Create(&m).Error; err != nil {
			continue // duplicate pair, skip
		}
		if m.Status == MatchStatusAccepted {
			accepted = append(accepted, m)
		}
	}
	log.Printf("Seeded matches (%d accepted).", len(accepted))

	// --- Seed Messages on accepted matches ---
	openers := []string{"Hey, noticed we match!", "Love your flag choices.", "Hi! How's your week going?", "That hunter green caught my eye."}
	for _, m := range accepted {
		participants := []uint64{m.UserLowID, m.UserHighID}
		for i := 0; i < 2+r.Intn(6); i++ {
			msg := Message{
				MatchID:     m.ID,
				SenderID:    participants[i%2],
				Content:     openers[r.Intn(len(openers))],
				MessageType: "text",
			}
			if err := gdb.Create(&msg).Error; err != nil {
				return fmt.Errorf("failed to seed message: %w", err)
			}
		}
	}

	// --- A few pending reports ---
	for i := 0; i < 3; i++ {
		report := AbuseReport{
			ReporterID:     users[i].ID,
			ReportedUserID: users[len(users)-1-i].ID,
			ReportType:     seedReportTypes[i%len(seedReportTypes)],
			Description:    "Seeded demo report.",
			Status:         ReportStatusPending,
		}
		if err := gdb.Create(&report).Error; err != nil {
			return fmt.Errorf("failed to seed report: %w", err)
		}
	}

	return nil
}

// SeedMinimalTestData loads a small fixed dataset for tests: a four-code
// catalog, three users with overlapping assignments, and one pending match.
func SeedMinimalTestData(gdb *gorm.DB) error {
	for _, t := range []string{"abuse_reports", "messages", "matches", "user_hanky_codes", "hanky_codes", "users"} {
		if err := gdb.Exec("DELETE FROM " + t).Error; err != nil {
			return err
		}
	}

	codes := []HankyCode{
		{ID: 1, Color: "navy blue", Position: "left", Meaning: "Seeking connection (active)", Category: "classic"},
		{ID: 2, Color: "navy blue", Position: "right", Meaning: "Seeking connection (passive)", Category: "classic"},
		{ID: 3, Color: "red", Position: "left", Meaning: "Intense play (top)", Category: "classic"},
		{ID: 4, Color: "red", Position: "right", Meaning: "Intense play (bottom)", Category: "classic"},
	}
	if err := gdb.Create(&codes).Error; err != nil {
		return err
	}

	now := time.Now()
	users := []User{
		{ID: 1, Username: "user1", Email: "u1@test.com", PasswordHash: "x", Age: 28, ProfileVisibility: "public", LastActive: now},
		{ID: 2, Username: "user2", Email: "u2@test.com", PasswordHash: "x", Age: 32, ProfileVisibility: "public", LastActive: now.Add(-time.Hour)},
		{ID: 3, Username: "user3", Email: "u3@test.com", PasswordHash: "x", Age: 45, ProfileVisibility: "public", LastActive: now.Add(-48 * time.Hour)},
	}
	if err := gdb.Create(&users).Error; err != nil {
		return err
	}

	assignments := []UserHankyCode{
		{UserID: 1, HankyCodeID: 1, Position: "left", Intensity: 8},
		{UserID: 1, HankyCodeID: 3, Position: "left", Intensity: 5},
		{UserID: 2, HankyCodeID: 2, Position: "right", Intensity: 6},
		{UserID: 3, HankyCodeID: 4, Position: "right", Intensity: 9},
	}
	if err := gdb.Create(&assignments).Error; err != nil {
		return err
	}

	match := Match{UserLowID: 1, UserHighID: 2, CompatibilityScore: 0.9, SharedCodeIDs: "[1]", Status: MatchStatusPending}
	return gdb.Create(&match).Error
}
