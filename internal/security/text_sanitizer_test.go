package security

import "testing"

func TestTextSanitizer_Sanitize(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字列", "", ""},
		{"プレーンテキスト", "サンプル商事", "サンプル商事"},
		{"前後の空白", "  試験案件A  ", "試験案件A"},
		{"scriptタグ", `<script>alert(1)</script>株式会社テスト`, "株式会社テスト"},
		{"装飾タグ", "<b>重要</b>顧客", "重要顧客"},
		{"イベント属性", `<img src=x onerror="alert(1)">部品`, "部品"},
		{"アンパサンド", "A&B工業", "A&B工業"},
		{"日付", "2024-04-01", "2024-04-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	input := `<p>A&amp;B</p> <i>商事</i>`

	once := s.Sanitize(input)
	if twice := s.Sanitize(once); twice != once {
		t.Errorf("Sanitize not idempotent: %q then %q", once, twice)
	}
}
