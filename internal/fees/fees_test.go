package fees

import "testing"

func TestCompute_CardScenario(t *testing.T) {
	// 1000 minor units via card: platform 2.5% = 25, payment 2.9% = 29.
	got := Compute(1000, MethodCard)
	if got.Platform != 25 {
		t.Errorf("platform = %d, want 25", got.Platform)
	}
	if got.Payment != 29 {
		t.Errorf("payment = %d, want 29", got.Payment)
	}
	if got.Total != 54 {
		t.Errorf("total = %d, want 54", got.Total)
	}
}

func TestCompute_PerMethod(t *testing.T) {
	tests := []struct {
		method  Method
		payment int64
	}{
		{MethodCard, 29},
		{MethodNetbanking, 19},
		{MethodUPI, 15},
		{MethodWallet, 20},
		{MethodBankTransfer, 10},
		{Method("cod"), 29}, // unknown falls back to card rate
	}

	for _, tt := range tests {
		got := Compute(1000, tt.method)
		if got.Payment != tt.payment {
			t.Errorf("Compute(1000, %s).Payment = %d, want %d", tt.method, got.Payment, tt.payment)
		}
		if got.Platform != 25 {
			t.Errorf("Compute(1000, %s).Platform = %d, want 25", tt.method, got.Platform)
		}
	}
}

func TestCompute_RoundsHalfUp(t *testing.T) {
	// 19 * 2.5% = 0.475 -> 0; 20 * 2.5% = 0.5 -> 1 (half-up).
	if got := Compute(19, MethodUPI).Platform; got != 0 {
		t.Errorf("platform fee on 19 = %d, want 0", got)
	}
	if got := Compute(20, MethodUPI).Platform; got != 1 {
		t.Errorf("platform fee on 20 = %d, want 1", got)
	}
}

func TestCompute_TotalInvariant(t *testing.T) {
	amounts := []int64{0, 1, 7, 99, 100, 999, 1000, 12345, 750000, 1_000_000_000}
	methods := []Method{MethodCard, MethodNetbanking, MethodUPI, MethodWallet, MethodBankTransfer, Method("unknown")}

	for _, a := range amounts {
		for _, m := range methods {
			first := Compute(a, m)
			second := Compute(a, m)
			if first != second {
				t.Fatalf("Compute(%d, %s) not deterministic: %+v vs %+v", a, m, first, second)
			}
			if first.Total != first.Platform+first.Payment {
				t.Errorf("Compute(%d, %s): total %d != platform %d + payment %d",
					a, m, first.Total, first.Platform, first.Payment)
			}
		}
	}
}

func TestCompute_NegativeAmount(t *testing.T) {
	got := Compute(-500, MethodCard)
	if got.Total != 0 || got.Platform != 0 || got.Payment != 0 {
		t.Errorf("negative amount should yield zero fees, got %+v", got)
	}
}

func TestKnown(t *testing.T) {
	for _, m := range []Method{MethodCard, MethodNetbanking, MethodUPI, MethodWallet, MethodBankTransfer} {
		if !Known(m) {
			t.Errorf("Known(%s) = false, want true", m)
		}
	}
	if Known(Method("cheque")) {
		t.Error("Known(cheque) = true, want false")
	}
}
