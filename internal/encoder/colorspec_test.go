package encoder

import "testing"

func TestColorSpecAutoSelectsBT709AtOrAboveHDThreshold(t *testing.T) {
	cases := []struct {
		width, height int
		want          ColorSpec
	}{
		{1920, 1080, ColorSpecBT709},
		{720, 480, ColorSpecBT709},  // height below threshold but width at it
		{1280, 720, ColorSpecBT709}, // exactly at the threshold
		{719, 719, ColorSpecBT601},
		{640, 480, ColorSpecBT601},
	}
	for _, c := range cases {
		if got := ColorSpecAuto(c.width, c.height); got != c.want {
			t.Fatalf("ColorSpecAuto(%d, %d) = %+v, want %+v", c.width, c.height, got, c.want)
		}
	}
}

func TestColorimetryStringEncodesFullRange(t *testing.T) {
	got := colorimetryString(ColorSpecBT709)
	want := "1:1:1:1"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestColorimetryStringEncodesLimitedRange(t *testing.T) {
	got := colorimetryString(ColorSpecBT601)
	want := "2:6:6:6"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
