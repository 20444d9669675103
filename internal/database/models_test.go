package database

import "testing"

func TestMealAssignmentDecoding(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		a := MealAssignment{
			MealData:             `{"title":"Frittata","protein":"eggs","steps":["whisk","bake"]}`,
			AllocatedIngredients: `[{"name":"Eggs","quantity":4,"unit":"ct"}]`,
		}

		meal, err := a.Meal()
		if err != nil {
			t.Fatalf("Meal() failed: %v", err)
		}
		if meal.Title != "Frittata" || meal.Protein != "eggs" || len(meal.Steps) != 2 {
			t.Errorf("Unexpected meal: %+v", meal)
		}

		items, err := a.Ingredients()
		if err != nil {
			t.Fatalf("Ingredients() failed: %v", err)
		}
		if len(items) != 1 || items[0].Name != "Eggs" || items[0].Quantity != 4 {
			t.Errorf("Unexpected allocations: %+v", items)
		}
	})

	t.Run("EmptyFieldsDecodeToZero", func(t *testing.T) {
		var a MealAssignment

		meal, err := a.Meal()
		if err != nil || meal.Title != "" {
			t.Errorf("Expected zero meal, got %+v (err %v)", meal, err)
		}

		items, err := a.Ingredients()
		if err != nil || items != nil {
			t.Errorf("Expected nil allocations, got %+v (err %v)", items, err)
		}
	})
}

func TestIngredientEntryRemaining(t *testing.T) {
	e := IngredientEntry{TotalQuantity: 6, AllocatedQuantity: 4.5}
	if got := e.Remaining(); got != 1.5 {
		t.Errorf("Remaining() = %v, want 1.5", got)
	}
}

func TestDayAndStatusValidation(t *testing.T) {
	for _, day := range AllDays {
		if !IsValidDay(day) {
			t.Errorf("Expected %q to be a valid day", day)
		}
	}
	if IsValidDay("funday") || IsValidDay("") {
		t.Error("Invalid day keys must be rejected")
	}

	for _, status := range ValidStatuses {
		if !IsValidStatus(status) {
			t.Errorf("Expected %q to be a valid status", status)
		}
	}
	if IsValidStatus("done") {
		t.Error("Unknown statuses must be rejected")
	}
}
