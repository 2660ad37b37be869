package wire

import "testing"

func TestCheckNoCaseSmuggledKeys(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"clean", `{"audio":true,"video":false}`, false},
		{"duplicate case", `{"audio":true,"Audio":false}`, true},
		{"nested duplicate", `{"body":{"room":1,"Room":2}}`, true},
		{"array nested duplicate", `{"items":[{"a":1},{"a":1,"A":2}]}`, true},
		{"not an object", `[1,2,3]`, false},
		{"scalar", `"hello"`, false},
	}
	for _, c := range cases {
		err := CheckNoCaseSmuggledKeys([]byte(c.data))
		if (err != nil) != c.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}
