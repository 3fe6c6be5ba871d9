package model

import "testing"

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    Operation
		wantErr bool
	}{
		{"read", OperationRead, false},
		{"READ", OperationRead, false},
		{"write", OperationWrite, false},
		{"Write", OperationWrite, false},
		{"erase", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOperation(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOperation(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseOperation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    CommandState
		terminal bool
	}{
		{CommandStateQueued, false},
		{CommandStateCompleted, true},
		{CommandStateCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("CommandState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestCommandRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		req    CommandRequest
		fields []string
	}{
		{"valid write", CommandRequest{Owner: "o", Board: "rsp0", Operation: OperationWrite, Values: []uint32{1}}, nil},
		{"valid read", CommandRequest{Owner: "o", Board: "rsp0", Operation: OperationRead, Count: 2, Period: 5}, nil},
		{"missing owner and board", CommandRequest{Operation: OperationRead}, []string{"owner", "board"}},
		{"write without values", CommandRequest{Owner: "o", Board: "b", Operation: OperationWrite}, []string{"values"}},
		{"periodic write", CommandRequest{Owner: "o", Board: "b", Operation: OperationWrite, Values: []uint32{1}, Period: 2}, []string{"period"}},
		{"bad operation", CommandRequest{Owner: "o", Board: "b", Operation: "ERASE"}, []string{"operation"}},
		{"negative register", CommandRequest{Owner: "o", Board: "b", Operation: OperationRead, Register: -1}, []string{"register"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.req.Validate()
			if len(errs) != len(tt.fields) {
				t.Fatalf("Validate() = %+v, want fields %v", errs, tt.fields)
			}
			for i, f := range tt.fields {
				if errs[i].Field != f {
					t.Errorf("errs[%d].Field = %q, want %q", i, errs[i].Field, f)
				}
			}
		})
	}
}
