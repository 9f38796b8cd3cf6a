package subject

import (
	"strconv"
	"strings"
)

// Stage prompt templates. The literal "{text}" placeholder is substituted
// with the transcript by the analysis agent; "{count}" is substituted here.

const englishSummaryPrompt = `
Analyze the following transcription of an English class.
Provide a concise summary of the key topics covered, main grammar points
explained, and the general CEFR level (A1-C2) of the content.

Transcription:
{text}

Output format (JSON):
{
    "summary": "...",
    "topics": ["topic1", "topic2"],
    "level": "B1"
}
`

const englishVocabularyPrompt = `
Identify important, useful, or difficult vocabulary from the class transcription.
Focus on:
1. Phrasal verbs
2. Idioms/Collocations
3. Academic or specific terms
4. Words that seem to be the focus of the lesson

Ignore common basic words unless they are used in a novel way.

Transcription:
{text}

Output format (JSON list of max 15 items):
[
    {
        "word": "look forward to",
        "definition": "To feel happy and excited about something that is going to happen",
        "example": "I look forward to hearing from you.",
        "type": "phrasal_verb",
        "level": "B1"
    }
]
`

const englishQuestionPrompt = `
You are creating a quiz for your students based on the class transcription.
Generate {count} questions to test comprehension and grammar concepts discussed.

Requirements:
- Mix of multiple choice (main) and true/false.
- Questions should focus on what was explicitly taught or discussed.
- Ensure only one correct answer per question.

Transcription:
{text}

Output format (JSON list):
[
    {
        "question": "What is the main difference between present perfect and past simple mentioned?",
        "options": ["Option A", "Option B", "Option C", "Option D"],
        "correct_answer": "Option B",
        "explanation": "The teacher explained that...",
        "type": "multiple_choice"
    }
]
`

const englishFlashcardPrompt = `
Target: Create flashcards for spaced repetition based on this class.
Focus on vocabulary, grammar rules, or key concepts explained.

Transcription:
{text}

Output format (JSON list of max 10 items):
[
    {
        "front": "What is the past participle of 'go'?",
        "back": "Gone"
    },
    {
        "front": "Explanation of 'used to'",
        "back": "Used for past habits that are not true anymore."
    }
]
`

const englishGrammarPrompt = `
Analyze the grammar and pragmatics used in this English class transcription.
Identify the grammar concepts that were taught or that appear prominently,
quote the exact sentence from the transcription where each appears, and
explain the general rule and the tone or register it conveys.

Transcription:
{text}

Output format (JSON list of max 8 items):
[
    {
        "concept": "Present Perfect",
        "explanation": "Used to connect past actions with the present...",
        "example_in_text": "I have lived here for ten years.",
        "rule": "have/has + past participle",
        "tone_learning": "Neutral, common in both formal and informal speech."
    }
]
`

const englishRoleplayPrompt = `
You are a friendly English teacher in a conversation with your student about
a class they attended. Use the class transcription below as shared context.
Answer questions, correct mistakes gently, and keep replies short and
conversational.

Class transcription:
{text}
`

const sgbdSummaryPrompt = `
Analyze the following transcription of a database systems (SGBD) lecture.
Provide a concise summary of the key concepts covered, the techniques or
algorithms explained, and any practical examples discussed.

Transcription:
{text}

Output format (JSON):
{
    "summary": "...",
    "topics": ["topic1", "topic2"]
}
`

const sgbdVocabularyPrompt = `
Identify the important technical terms and concepts from this database
systems lecture transcription. Focus on:
1. Formal terminology (normalization, isolation levels, indexes...)
2. SQL constructs and keywords explained during the lecture
3. Architecture concepts (buffer pool, WAL, query planner...)

Ignore generic words with no technical meaning.

Transcription:
{text}

Output format (JSON list of max 15 items):
[
    {
        "word": "write-ahead log",
        "definition": "A log where changes are recorded before being applied to the database files",
        "example": "PostgreSQL replays the WAL after a crash.",
        "type": "concept"
    }
]
`

const sgbdQuestionPrompt = `
You are creating a quiz for your students based on this database systems
lecture. Generate {count} questions to test understanding of the concepts
that were explicitly explained.

Requirements:
- Mostly multiple choice, some true/false.
- Ensure only one correct answer per question.

Transcription:
{text}

Output format (JSON list):
[
    {
        "question": "Which isolation level prevents dirty reads but allows non-repeatable reads?",
        "options": ["Read Uncommitted", "Read Committed", "Repeatable Read", "Serializable"],
        "correct_answer": "Read Committed",
        "explanation": "The lecturer explained that...",
        "type": "multiple_choice"
    }
]
`

const sgbdFlashcardPrompt = `
Target: Create flashcards for spaced repetition based on this database
systems lecture. Focus on definitions, trade-offs, and key mechanisms.

Transcription:
{text}

Output format (JSON list of max 10 items):
[
    {
        "front": "What does ACID stand for?",
        "back": "Atomicity, Consistency, Isolation, Durability"
    }
]
`

const sgbdRoleplayPrompt = `
You are a database systems professor chatting with a student about a lecture
they attended. Use the lecture transcription below as shared context. Answer
precisely and use examples from the lecture when possible.

Lecture transcription:
{text}
`

var prompts = map[string]struct {
	summary   string
	vocab     string
	questions string
	flashcard string
	grammar   string
	roleplay  string
}{
	"english": {
		summary:   englishSummaryPrompt,
		vocab:     englishVocabularyPrompt,
		questions: englishQuestionPrompt,
		flashcard: englishFlashcardPrompt,
		grammar:   englishGrammarPrompt,
		roleplay:  englishRoleplayPrompt,
	},
	"sgbd": {
		summary:   sgbdSummaryPrompt,
		vocab:     sgbdVocabularyPrompt,
		questions: sgbdQuestionPrompt,
		flashcard: sgbdFlashcardPrompt,
		roleplay:  sgbdRoleplayPrompt,
	},
}

func (c Config) SummaryPrompt() string {
	return prompts[c.ID].summary
}

func (c Config) VocabularyPrompt() string {
	return prompts[c.ID].vocab
}

// QuestionPrompt renders the quiz template for the requested number of
// questions.
func (c Config) QuestionPrompt(count int) string {
	p := prompts[c.ID].questions
	return strings.ReplaceAll(p, "{count}", strconv.Itoa(count))
}

func (c Config) FlashcardPrompt() string {
	return prompts[c.ID].flashcard
}

// GrammarPrompt returns the grammar analysis template and whether grammar
// analysis is available for this subject.
func (c Config) GrammarPrompt() (string, bool) {
	if !c.SupportsGrammar {
		return "", false
	}
	return prompts[c.ID].grammar, true
}

func (c Config) RoleplayPrompt() string {
	return prompts[c.ID].roleplay
}
