package peertube

import "testing"

func TestAdapter_ClassifyURL(t *testing.T) {
	a := New(Config{}, nil, nil, nil, nil)

	tests := []struct {
		name   string
		url    string
		wantID string
		wantOK bool
	}{
		{
			name:   "canonical watch URL",
			url:    "https://tilvids.com/videos/watch/3fa85f64-5717-4562-b3fc-2c963f66afa6",
			wantID: "3fa85f64-5717-4562-b3fc-2c963f66afa6",
			wantOK: true,
		},
		{"foreign platform", "https://rumble.com/v1a2b3c", "", false},
		{"host with no video path", "https://tilvids.com/", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := a.ClassifyURL(tt.url)
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("ClassifyURL(%q) = (%q, %v), want (%q, %v)", tt.url, id, ok, tt.wantID, tt.wantOK)
			}
			if a.OwnsURL(tt.url) != tt.wantOK {
				t.Errorf("OwnsURL(%q) = %v, want %v", tt.url, a.OwnsURL(tt.url), tt.wantOK)
			}
		})
	}
}
