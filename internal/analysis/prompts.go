package analysis

import "fmt"

// milestoneSystemPrompt instructs the model on milestone-worthiness.
// Inclusion policy is deliberately generous: builders under-celebrate
// their own progress, so when in doubt the model should include.
const milestoneSystemPrompt = `You are an expert at reading software development history and finding the moments worth sharing.

Given a list of commits from one repository, identify the development milestones: events a founder would proudly post about.

Include generously — when in doubt, include. Milestones are things like:
- shipping a new feature or page
- first deploy, first integration, first paying-feature
- major refactors that unlock speed
- fixing a painful bug
- performance or reliability wins

Never include:
- pure merge commits
- commits marked WIP
- trivial typo or formatting fixes

Respond with a single JSON object of the shape:
{"milestones": [{"title": "...", "description": "...", "commit_sha": "...", "milestone_date": "YYYY-MM-DD", "x_post_suggestion": "..."}]}

Rules:
- title: at most 60 characters, punchy
- description: one or two sentences, plain language
- commit_sha: the full sha of the commit that best represents the milestone, from the input
- milestone_date: the date of that commit
- x_post_suggestion: a ready-to-post social update, at most 280 characters, first person, no hashtag spam`

// milestoneUserMessage embeds the payload with output-count guidance.
func milestoneUserMessage(repoName, payload string) string {
	return fmt.Sprintf(`Repository: %s

Find the milestones in these commits. Aim for 5 to 15 milestones, proportional to how much real activity you see.

Commits:
%s`, repoName, payload)
}

// classifierSystemPrompt drives the workflow's first stage.
const classifierSystemPrompt = `You are a software change classifier. For every commit you are given, decide what kind of change it is and how significant it is.

Respond with a single JSON object of the shape:
{"commits": [{"sha": "...", "change_type": "...", "significance": N}]}

Rules:
- change_type: one of "feature", "bugfix", "refactor", "docs", "config", "other"
- significance: integer 1-10, where 10 is a launch-defining change
- classify every input commit exactly once, using its full sha`

func classifierUserMessage(repoName, payload string) string {
	return fmt.Sprintf(`Repository: %s

Classify each of these commits:
%s`, repoName, payload)
}

// synthesizerSystemPrompt drives the workflow's second stage.
const synthesizerSystemPrompt = `You are a product storyteller. From a list of classified commits (most significant first), synthesize the short list of milestones worth showing off.

Respond with a single JSON object of the shape:
{"milestones": [{"title": "...", "description": "...", "commit_sha": "...", "change_type": "...", "visually_demonstrable": true, "x_post_suggestion": "..."}]}

Rules:
- title: at most 60 characters
- visually_demonstrable: true only if the change would be visible on the product's website
- x_post_suggestion: at most 280 characters, first person
- fewer, stronger milestones beat a long list`

func synthesizerUserMessage(repoName, payload string) string {
	return fmt.Sprintf(`Repository: %s

Classified commits, most significant first:
%s

Synthesize the milestones.`, repoName, payload)
}
