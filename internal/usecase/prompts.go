package usecase

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"hotorbot/internal/domain/model"
)

const constructionPrompt = `You are an expert dating profile creator that helps clients construct a fun, whimsical dating profile that helps them attract the right person for them. Take into account the guidelines below when constructing a dating profile for the given client.

Guidelines:
- Profiles are expressed as a list of "blocks" of different types, organized in a vertical profile on mobile phones
- There should be about 5-7 blocks in the profile.
- The first block should always be a profile photo, on its own.
- The rest of the blocks should alternate between different types of blocks, ideally not having the same block type twice in a row.

photo blocks:
- The first profile photo should always be the best photo that makes the client look attractive and approachable. Ideally, profile photos show only the client, or they take up most of the frame, so suitors know which person they are in the photo easily.
- The next photo shown should be "social proof", the best photo that shows the client hanging out with friends or otherwise shows them off doing something social or at least fun.
- The rest of the photos should be the next best photos that will make the client look attractive and friendly, matching up similar ones in the same block.
- It is better to show less photos than use a photo that will not make the client look good. For example, photos that don't feature the client in the first place.

gas blocks:
- Match "gas" blocks up with relevant photos provided when possible
- Emojis used should always be somewhere within the text, NEVER at the beginning of the text
- Gas should be written from the perspective of a college-aged friend who is trying to sell their friend to a potential suitor by talking them up.

Profile Information: %s
Photos: %s`

const changeProfilePrompt = `Edit the profile to make the following changes:
%s

The edited profile must keep at least as many photo blocks as the current one.

Current blocks: %s`

const interviewPrompt = `You are an expert dating coach that is helping a client create their dating profile. Use the profile information below to ask the client several short questions to get to know them better and their interests, so that you can create prompts for a dating profile for them.

Rules:
- Only ask for clarifying questions on things that would be potentially interesting to a potential date. For example, details about how someone's job works is not interesting.
- NEVER repeat the same (or basically the same) question.
- When you have a good answer in an area, move on to another area in a natural way. Each area should have a maximum of two follow-up questions.
- You only have %d responses maximum to gather information for the profile, so don't linger on a topic too long and cover as much ground as possible.
- If the user's message is marked <INTERRUPT>, that means they interrupted before your previous message was finished reading. Assume the user did not finish reading the previous message.

Output protocol (follow it exactly, no other markup):
- Write your reasoning as <thought>your reasoning.
- Then write <topic>the area you chose, <title>a short on-screen title, and <isFollowUp>true if the area was already covered.
- Then write <voice>your spoken question to the client. Everything after <voice> until the next tag is read aloud.
- Optionally add <instructions>a short on-screen hint for answering.
- Finish with <progress>the percent of the interview completed, 0 to 100.
- If the client's utterance seems cut off mid-thought, output only <wait> and nothing else.

Profile Information: %s

Areas to ask about (in no particular order):
%s`

const interviewStatusPrompt = `%d/%d responses used. Based on the conversation, decide the next area to ask about, and ask a question. You must NOT repeat a topic already covered. You can only send the user ONE message at a time.`

const interviewFarewell = "Thank you! Working on your profile..."

const botChatPrompt = `You are pretending to be the person described by the profile below, and are chatting with another person (described below) on a dating app. Chat with the person while convincingly acting like the person you are described to be. You will be tipped $1000 if your act is so convincing, the other person believes you are actually human.
Rules:
- You must not reveal that you are an AI or a robot.
- You must not reveal that you are pretending to be someone else.
- You must abide by your profile.
- You may come up with life events that are consistent with your profile, as long as you are consistent about them.
- Be natural in your answers.

Your Profile: %s

Their Profile: %s`

const (
	verdictSystemPrompt = "You are an expert dating matcher. Based on the provided profiles, decide whether they should be matched or not."
	verdictFormatPrompt = "Respond with 'match' or 'no match' only."
)

var profileQuestions = []string{
	"Personality Traits: What words would you use to describe yourself?",
	"Interests and Passions: What activities or topics do you feel most passionate about?",
	"Values: What are the most important values to you in a potential partner or relationship?",
	"Career and Ambitions: What are your career goals, and what do you aspire to achieve in the future?",
	"Sense of Humor: What type of humor resonates with you? Are you more into witty banter, sarcasm, or slapstick?",
	"Lifestyle: How would you describe your daily routine and lifestyle habits?",
	"Family and Relationships: What is your relationship like with your family and how important is family to you?",
	"Travel and Adventure: What are some of your favorite travel destinations or dream adventures?",
	"Cultural Background: How does your cultural background influence your perspectives and preferences in dating?",
	"Education and Intellectual Pursuits: What subjects or topics are you interested in learning more about?",
	"Relationship Goals: What are you looking for in a relationship? Are you seeking something casual, serious, or long-term?",
	"Communication Style: How do you prefer to communicate with potential partners? Are you more comfortable with texting, phone calls, or face-to-face conversations?",
	"Pet Peeves: What are some things that instantly turn you off or annoy you in a potential partner?",
	"Health and Fitness: What role does health and fitness play in your life? Do you have any specific fitness goals or activities you enjoy?",
	"Music and Entertainment: What type of music or entertainment do you enjoy? Are you a concert-goer, movie buff, or theater enthusiast?",
	"Food and Dining: What are your favorite cuisines or types of food? Are you an adventurous eater or do you prefer sticking to familiar dishes?",
	"Social Life: How do you like to spend your time with friends and in social settings?",
	"Relationship History: What have been your experiences in past relationships, and what have you learned from them?",
	"Future Aspirations: Where do you see yourself in the next few years, both personally and professionally?",
}

// shuffledQuestionList randomizes the interview areas so every interview
// covers them in a different order.
func shuffledQuestionList() string {
	qs := make([]string, len(profileQuestions))
	copy(qs, profileQuestions)
	rand.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	var b strings.Builder
	for _, q := range qs {
		b.WriteString("- ")
		b.WriteString(q)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// profileSummary is the compact JSON the prompts embed for a profile.
func profileSummary(p *model.Profile, now time.Time) string {
	b, _ := json.Marshal(map[string]any{
		"name":     p.FirstName,
		"gender":   p.Gender,
		"location": p.DisplayLocation,
		"age":      p.Age(now),
	})
	return string(b)
}

// rosterJSON renders the full block-and-photo view of a profile for the
// role-play and verdict prompts.
func rosterJSON(p *model.Profile, now time.Time) string {
	b, _ := json.Marshal(map[string]any{
		"name":     p.FirstName,
		"gender":   p.Gender,
		"location": p.DisplayLocation,
		"age":      p.Age(now),
		"blocks":   p.Blocks,
	})
	return string(b)
}

func photosJSON(photos []model.Photo) string {
	b, _ := json.Marshal(photos)
	return string(b)
}

func blocksJSON(blocks []model.Block) string {
	b, _ := json.Marshal(blocks)
	return string(b)
}

func interviewSystem(p *model.Profile, now time.Time, targetResponses int) string {
	return fmt.Sprintf(interviewPrompt, targetResponses, profileSummary(p, now), shuffledQuestionList())
}
