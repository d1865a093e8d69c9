package conversation

// FAQTopic is one entry of the FAQ sub-menu.
type FAQTopic struct {
	Question string
	Answer   string
}

// SeedFAQ returns the default FAQ topics shown in the faq menu variant.
func SeedFAQ() []FAQTopic {
	return []FAQTopic{
		{
			Question: "Como redefinir minha senha de rede?",
			Answer:   "Acesse o portal de autoatendimento e clique em \"Esqueci minha senha\". Se a conta estiver bloqueada, abra um chamado pelo menu.",
		},
		{
			Question: "Como configurar a VPN?",
			Answer:   "Instale o cliente VPN disponível na Central de Software e entre com seu usuário de rede. O endereço do servidor já vem configurado.",
		},
		{
			Question: "Qual o prazo de atendimento de um chamado?",
			Answer:   "Chamados comuns são analisados em até 1 dia útil. Urgências devem ser encaminhadas a um atendente.",
		},
		{
			Question: "Como solicitar acesso a um sistema?",
			Answer:   "Abra um chamado informando o nome do sistema e o perfil de acesso. A liberação depende da aprovação do seu gestor.",
		},
	}
}
