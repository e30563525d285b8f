package patrimony

// problemTips maps each reported problem to the troubleshooting checklist
// shown while filling in the form.
var problemTips = map[Problem][]string{
	ProblemSlowness: {
		"Verifique o uso de memória RAM e CPU no gerenciador de tarefas",
		"Limpe arquivos temporários e cache do sistema",
		"Desative programas de inicialização desnecessários",
		"Execute uma verificação de vírus e malware",
		"Considere adicionar mais memória RAM ou atualizar o HD para SSD",
	},
	ProblemNoPower: {
		"Verifique se o cabo de energia está conectado corretamente",
		"Teste a tomada com outro dispositivo",
		"Pressione e segure o botão de energia por 30 segundos (descarga estática)",
		"Verifique se há LEDs acesos na placa-mãe",
		"Teste com outra fonte de energia se possível",
		"Se for notebook, remova a bateria e tente ligar apenas com o carregador",
	},
	ProblemOtherIssue: {
		"Descreva detalhadamente o problema nas observações",
		"Anote mensagens de erro específicas",
		"Verifique se o problema é de hardware ou software",
		"Consulte a documentação do fabricante",
	},
}

// Tips returns the checklist for a problem, or nil for unknown problems.
func Tips(problem Problem) []string {
	return problemTips[problem]
}
