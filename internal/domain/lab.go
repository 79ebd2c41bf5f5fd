package domain

// LabSource 化验结果来源
type LabSource string

const (
	LabSourceManual LabSource = "manual"
	LabSourceFile   LabSource = "file"
)

// LabResult 实验室分析结果（每个参数一条）
type LabResult struct {
	ID            string    `json:"id"`
	ParameterID   string    `json:"parameterId"`
	ParameterName string    `json:"parameterName"`
	Unit          string    `json:"unit"`
	Value         float64   `json:"value"`
	Source        LabSource `json:"source"`
	FileName      string    `json:"fileName,omitempty"`
	AnalysisDate  string    `json:"analysisDate"`
	LabName       string    `json:"labName"`
	Method        string    `json:"method"`
	Notes         string    `json:"notes"`
	Analyst       string    `json:"analyst"`
	CreatedAt     string    `json:"createdAt"`
	UpdatedAt     string    `json:"updatedAt"`
}

// LabParameter 实验室组中的参数
type LabParameter struct {
	ID            string `json:"id"`
	ParameterName string `json:"parameterName"`
	Unit          string `json:"unit"`
	Group         Group  `json:"group"`
	IsLaboratory  bool   `json:"isLaboratory"`
}
