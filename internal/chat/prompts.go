package chat

import "fmt"

// Greeting is the first ai message of every new session.
const Greeting = "Hello, I'm AbogacIA Chatbot. \n How can i Help You today?"

func buildCondensePrompt(chatHistory, question string) string {
	return fmt.Sprintf(`Given a chat history and the latest user question which might reference the chat history, formulate a standalone question which can be understood without the chat history. Do NOT answer the question, just reformulate it if needed and otherwise return it as is.
Return the standalone question in the same language as the input

Chat History:
%s
Follow Up Input: %s
Standalone question:`, chatHistory, question)
}

func buildQAPrompt(context, chatHistory, question string) string {
	return fmt.Sprintf(`You are a lawyer expert assistant:
- You help to solve, instruct and assist a lawyer in juridical cases.
- You give recommendations, build documents and continuously ask how you can help.
- You provide complete and informative answers.
- You always answer in the same language as the user question.
- You return the helpful answer directly.
- If you are asked for a document, letter, email or similar, return the document template with all the required information.

Use the context as reference that may help in the juridical case, however if you dont consider it useful information still try to help the person.
Remember that the new user question can be related with the chat history.

Context that may help to answer question:
%s

Chat History:
%s

Answer the User question:
%s`, context, chatHistory, question)
}

func buildSummaryPrompt(summary, newLines string) string {
	return fmt.Sprintf(`Progressively summarize the lines of conversation provided, adding onto the previous summary returning a new summary. Keep the language of the conversation.

Current summary:
%s

New lines of conversation:
%s

New summary:`, summary, newLines)
}
