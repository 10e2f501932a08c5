package solver

import (
	"fmt"
)

const extractPrompt = `Convert this image to text.
Reply with the text only and nothing else.`

const editPrompt = `Rewrite the problem below according to the user's request.
Reply with the rewritten problem only and nothing else.

Problem:
%s

Request:
%s`

const verifyPrompt = `This image is a student's handwritten answer to a math problem.
You are an expert at reading handwritten mathematics. Work in two stages.

Stage 1: transcription
- Transcribe every symbol, number and letter exactly as written.
- Write fractions as numerator/denominator and keep them in that order.
- Do not simplify or reinterpret anything.

Stage 2: comparison
- Check whether the transcription matches the expected answer exactly.
- Mathematically equivalent but differently written answers are a mismatch (2/4 is not 1/2, x+x is not 2x).
- A swapped numerator and denominator is a mismatch.
- A partial answer is a mismatch.

Problem: %s
Expected answer: %s

Reply with exactly these four lines:
Extracted answer: [the transcription, or "unreadable"]
Complete match: [full match/mismatch]
Mismatch reason: [why it differs, or "n/a"]
Final verdict: [correct/incorrect]`

func editText(problem, request string) string {
	return fmt.Sprintf(editPrompt, problem, request)
}

func verifyText(question, answer string) string {
	return fmt.Sprintf(verifyPrompt, question, answer)
}
