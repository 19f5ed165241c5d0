package domain

import (
	"github.com/gitscout/gitscout-backend/internal/domain/chat"
	"github.com/gitscout/gitscout-backend/internal/domain/search"
)

// Aggregated aliases so callers can import a single package as
// "types" instead of reaching into each domain subpackage.

type Conversation = chat.Conversation
type ChatMessage = chat.ChatMessage
type Content = chat.Content
type TextContent = chat.TextContent
type FilterProposal = chat.FilterProposal
type Option = chat.Option
type ClarificationQuestion = chat.ClarificationQuestion
type MultiClarification = chat.MultiClarification
type EmailDraft = chat.EmailDraft
type StepContent = chat.StepContent

type SearchSession = search.SearchSession
type Candidate = search.Candidate
type CandidateFilters = search.CandidateFilters
type RepoSummary = search.RepoSummary
type StepInfo = search.StepInfo
