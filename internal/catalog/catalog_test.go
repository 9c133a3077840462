package catalog

import "testing"

func TestLevelThresholdsShape(t *testing.T) {
	if LevelThresholds[0] != 0 {
		t.Errorf("level 0 threshold = %d, want 0", LevelThresholds[0])
	}
	for i := 1; i < len(LevelThresholds); i++ {
		if LevelThresholds[i] < LevelThresholds[i-1] {
			t.Errorf("threshold decreased at level %d: %d < %d", i, LevelThresholds[i], LevelThresholds[i-1])
		}
	}
	if MaxLevel != len(LevelThresholds)-1 {
		t.Errorf("MaxLevel = %d, want %d", MaxLevel, len(LevelThresholds)-1)
	}
}

func TestAchievementByID(t *testing.T) {
	for _, a := range Achievements() {
		got, ok := AchievementByID(a.ID)
		if !ok {
			t.Errorf("AchievementByID(%q) not found", a.ID)
			continue
		}
		if got.Title == "" || got.Icon == "" || got.Points <= 0 {
			t.Errorf("achievement %q incomplete: %+v", a.ID, got)
		}
	}

	if _, ok := AchievementByID("bogus"); ok {
		t.Error("AchievementByID returned a hit for an unknown id")
	}
}

func TestAchievementsIsACopy(t *testing.T) {
	first := Achievements()
	first[0].Title = "mutated"

	if Achievements()[0].Title == "mutated" {
		t.Error("catalog mutated through the returned slice")
	}
}

func TestChallengeTemplates(t *testing.T) {
	templates := ChallengeTemplates()
	if len(templates) == 0 {
		t.Fatal("no challenge templates")
	}

	seen := make(map[string]bool)
	for _, tpl := range templates {
		if seen[tpl.ID] {
			t.Errorf("duplicate template id %q", tpl.ID)
		}
		seen[tpl.ID] = true

		if tpl.GoalMin <= 0 || tpl.GoalMax < tpl.GoalMin {
			t.Errorf("template %q has bad goal range [%d, %d]", tpl.ID, tpl.GoalMin, tpl.GoalMax)
		}
		if tpl.RewardMin <= 0 || tpl.RewardMax < tpl.RewardMin {
			t.Errorf("template %q has bad reward range [%d, %d]", tpl.ID, tpl.RewardMin, tpl.RewardMax)
		}
		if tpl.Kind == "" {
			t.Errorf("template %q has no kind", tpl.ID)
		}
	}
}
