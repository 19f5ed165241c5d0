package search

// Discovery progress steps, in emission order. Progress values are
// fixed per step and non-decreasing across the stream.
const (
	StepParsingJobDescription = "parsing_job_description"
	StepGeneratingQueries     = "generating_queries"
	StepSearchingGitHub       = "searching_github"
	StepScoringCandidates     = "scoring_candidates"
	StepRankingResults        = "ranking_results"
)

type StepInfo struct {
	Step     string
	Progress int
	Message  string
}

// StepOrder drives the publisher; the terminal complete event is
// emitted at 100 separately.
var StepOrder = []StepInfo{
	{Step: StepParsingJobDescription, Progress: 10, Message: "Parsing job description"},
	{Step: StepGeneratingQueries, Progress: 25, Message: "Generating search queries"},
	{Step: StepSearchingGitHub, Progress: 45, Message: "Searching GitHub profiles"},
	{Step: StepScoringCandidates, Progress: 70, Message: "Scoring candidates"},
	{Step: StepRankingResults, Progress: 90, Message: "Ranking results"},
}
