package intake

import "testing"

func TestInferIntent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		hint string
		want string
	}{
		{name: "zapier", text: "Can you set up a Zapier flow for leads?", want: IntentAutomation},
		{name: "make.com", text: "we use make.com today", want: IntentAutomation},
		{name: "workflow beats hint", text: "automate the onboarding workflow", hint: "hiring", want: IntentAutomation},
		{name: "staffing", text: "need two contractors for staff augmentation", want: IntentStaffing},
		{name: "hint", text: "hello", hint: " Support ", want: "support"},
		{name: "default", text: "need a designer in Pune", want: IntentHiring},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := InferIntent(tc.text, tc.hint); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
