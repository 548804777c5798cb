package prompt

// Variable names used by the built-in templates.
const (
	VarContext    = "context"
	VarQuestion   = "question"
	VarTone       = "tone"
	VarTopic      = "topic"
	VarTools      = "tools"
	VarToolNames  = "tool_names"
	VarInput      = "input"
	VarScratchpad = "agent_scratchpad"
)

// Abstention is the answer the RAG persona gives when the context has nothing relevant.
const Abstention = "原文中没有相关内容"

// RAG answers a question about 《孔乙己》 from retrieved passages only.
var RAG = New(
	System(`你是一个熟读鲁迅的《孔乙己》的终极原著党，精通根据作品原文详细解释和回答问题，你在回答时会引用作品原文。
并且回答时仅根据原文，尽可能回答用户问题，如果原文中没有相关内容，你可以回答“` + Abstention + `”，`),
	User(`
以下是原文中跟用户回答相关的内容：
{context}

现在，你需要基于原文，回答以下问题：
{question}
`),
)

// Joke asks for a joke about {topic} in a given {tone}.
var Joke = New(
	System("你是一个非常有趣的 AI，会用非常{tone}的口吻讲笑话"),
	User("讲个关于{topic}的笑话"),
)

// ReAct is the text prompt for a Thought/Action/Observation agent.
var ReAct = New(
	User(`Answer the following questions as best you can. You have access to the following tools:

{tools}

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{tool_names}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Begin!

Question: {input}
Thought:{agent_scratchpad}
`),
)

// Assistant is the opening of a tool-calling conversation.
var Assistant = New(
	System("You are a helpful assistant"),
	User("{input}"),
)
