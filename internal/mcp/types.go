package mcp

// CallInput is the input for the filer_call tool.
type CallInput struct {
	Procedure string         `json:"procedure" jsonschema:"Procedure name, e.g. OpenDir, Copy or FileType. See filer_procedures."`
	Args      map[string]any `json:"args,omitempty" jsonschema:"Arguments keyed by name. Lists are arrays of strings, Bool arguments accept true/false."`
}

// CallResult is one entry of the running filer's reply.
type CallResult struct {
	Procedure string `json:"procedure,omitempty"`
	Result    string `json:"result,omitempty"`
	Fault     string `json:"fault,omitempty"`
}

// CallOutput is the output for the filer_call tool.
type CallOutput struct {
	Results []CallResult `json:"results"`
}

// VersionInput is the input for the filer_version tool.
type VersionInput struct{}

// VersionOutput is the output for the filer_version tool.
type VersionOutput struct {
	Version string `json:"version"`
}

// ProceduresInput is the input for the filer_procedures tool.
type ProceduresInput struct{}

// ArgumentInfo describes one procedure argument.
type ArgumentInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Required bool   `json:"required"`
}

// ProcedureInfo describes one callable procedure.
type ProcedureInfo struct {
	Name      string         `json:"name"`
	Arguments []ArgumentInfo `json:"arguments,omitempty"`
}

// ProceduresOutput is the output for the filer_procedures tool.
type ProceduresOutput struct {
	Procedures []ProcedureInfo `json:"procedures"`
}
