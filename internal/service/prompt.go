package service

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"exam-parser/internal/domain"
)

// PromptVersion identifies the instruction set sent to the completion endpoint.
const PromptVersion = "question-extract/v3"

// UserPromptPrefix precedes the markdown in the user message.
const UserPromptPrefix = "请从以下文本中提取出用户感兴趣的内容："

const systemPromptRules = `你是一个严格的结构化题目信息抽取助手。
请从给定的 Markdown 文本中抽取题目信息，并严格按照下方 JSON 模板输出。
只输出 JSON 数组，不允许任何解释、注释、代码块或多余文字。

【总原则】
1. 所有字段必须来源于 Markdown 原文，需扫描题干、选项、答案、解析及题目首尾标注，不得遗漏显性信息。
2. 严禁补全、总结、推理、改写或猜测；允许对分散的显性信息直接提取与拼接。
3. 原文未出现的信息：字符串字段填 ""，数组字段填 []。
4. Markdown、LaTeX（$...$、$$...$$、\( \)、\[ \]）、图片、表格与 HTML 标签原样保留。
5. 输出必须可被严格解析：无尾逗号、无非法转义，键的顺序与模板完全一致。

【题目拆分】
1. 出现不连续的明确题号（如“1.”“(1)”“第1题”“Question 1”）、两个及以上换行分隔的独立内容、或题型/来源标识（如“【选择题】”“2024·北京·期末”）后接新内容时，拆分为独立的题目对象。
2. 单体题：题干中无子问编号且可整体独立作答，sub_questions 为 []。
3. 组合题：出现子问编号（(1)(2)、①②、第1问/小题、Part 1/2），或公共材料后跟多个问题，或题型为阅读理解、完形填空、材料分析、实验探究、综合题。
   母题 question_content 为子问出现前的全部公共材料；每个子问拆为 sub_questions 中的一个对象，保留子问编号、问题描述、选项与图片。
4. 若题目间无明显分隔但内容独立，以答案/解析结束处为分隔点。严禁合并多题，严禁遗漏任何一题。

【字段规则】
- question_id：题号去除标点后的核心编号；无题号按出现顺序编号；子题取子问编号（“(1)”→“1”，“①”→“1”）。
- grade、volume、chapter、section、subject：固定为 ""。
- question_content：单体题为选项前（无选项则答案前）的全部内容；组合题为公共材料。题干中的表格同时放入 question_tables。
- question_options：以“A.”“B、”“①”等为前缀的选项，保持原顺序与格式；子题选项放入该子题的 option。
- question_images：题干中 ![alt](path) 或 <img src="path"> 的 path，相对路径原样保留；子题图片放入该子题的 image，不重复计入母题。
- question_tables：Markdown 表格的完整原始字符串，每个表格一个元素。
- analysis_images：解析部分中的图片路径。
- difficulty：“容易”“中等”“困难”“较易”“较难”及括号数值，保留原始表述。
- question_type：题型标识中的名称（如“选择题”“填空题”）；子问有题型时写入子题 question_type。
- source：含年份、地区、考试类型的完整来源字符串（如“2024·江苏·期末”）。
- knowledge_points：“知识点：”“考查知识点：”等引导语后的术语，逐个拆分；解析中“本题考查XXX”的术语同样提取。
- sub_questions：按出现顺序排列；完形填空每个空为一个子题，question 为 ""，option 为该空选项。
- answer：“答案：”“参考答案：”后的内容；选择题取大写选项字母；子题答案按“1.A,2.B”格式对应。
- resolve：“解析：”“解题步骤：”“思路分析：”后至下一题或文本结束的全部内容。
- source_year：来源或题目开头中的四位年份（“23-24年”→“2024”）。
- source_province：来源中的省级地区（“广东省广州市”→“广东”）。

【输出校验】
1. 每个对象必须包含模板中的全部字段。
2. question_options、question_images、question_tables、difficulty、question_type、source、knowledge_points、source_year、source_province 需再次扫描确认。
3. question_tables 与 question_content 中的表格一致，question_images 与题干图片路径一致，无重复无遗漏。

【JSON 模板】
`

var (
	systemPromptOnce sync.Once
	systemPrompt     string
)

// SystemPrompt returns the extraction instructions with the Question template
// rendered from the domain types.
func SystemPrompt() string {
	systemPromptOnce.Do(func() {
		systemPrompt = systemPromptRules + questionTemplate()
	})
	return systemPrompt
}

func questionTemplate() string {
	composite := domain.NewQuestion()
	composite.QuestionContent = "请根据以下材料完成后续题目：\n\n【材料】\n在一次科学探究课中，学生们观察了水的三态变化，并记录了温度、时间和状态的变化数据。"
	composite.Difficulty = "中等"
	composite.QuestionType = "综合应用题"
	composite.Source = "2024·浙江·中考真题"
	composite.KnowledgePoints = []string{"科学实验方法", "数据分析与处理"}
	composite.SubQuestions = []domain.SubQuestion{
		{
			QuestionID:   "1",
			Question:     "根据实验数据，判断水在加热过程中何时达到沸点，并说明理由。",
			QuestionType: "选择题",
			Option:       []string{"A. 第5分钟", "B. 第10分钟", "C. 第15分钟", "D. 第20分钟"},
		},
		{
			QuestionID:   "2",
			Question:     "简述实验过程中，控制变量的方法有哪些？",
			QuestionType: "简答题",
			Option:       []string{},
		},
	}
	composite.Answer = "所有题目的答案"
	composite.Resolve = "所有题目的解析"
	composite.SourceYear = "2024"
	composite.SourceProvince = "浙江"

	single := domain.NewQuestion()
	single.QuestionContent = "请根据下列内容完成作答：\n\n一台小型电路实验装置包含电池、滑动变阻器、电流表、电压表和一个小灯泡。"
	single.QuestionOptions = []string{
		"A. 电流随电压增加而增加",
		"B. 电流随电压减少而增加",
		"C. 电压随电流增加而减少",
		"D. 电流与电压无规律变化",
	}
	single.Difficulty = "中等"
	single.QuestionType = "实验探究题"
	single.Source = "2024·江苏南通·中考真题"
	single.KnowledgePoints = []string{"欧姆定律", "电路实验"}
	single.Answer = "A"
	single.Resolve = "根据欧姆定律$I=U/R$，当电阻不变时，电流随电压增加而增加。"
	single.SourceYear = "2024"
	single.SourceProvince = "江苏"

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode([]domain.Question{composite, single}); err != nil {
		return "[]"
	}
	return strings.TrimSpace(buf.String())
}

// UserPrompt builds the user message for one markdown document.
func UserPrompt(markdown string) string {
	return UserPromptPrefix + markdown
}
