package util

// ValidarCPF confere os dois dígitos verificadores do CPF. Aceita o número
// com ou sem pontuação; sequências de um mesmo dígito são rejeitadas.
func ValidarCPF(cpf string) bool {
	var digits []int
	for _, r := range cpf {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}

	if len(digits) != 11 {
		return false
	}

	repetido := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			repetido = false
			break
		}
	}
	if repetido {
		return false
	}

	soma := 0
	for i := 0; i < 9; i++ {
		soma += digits[i] * (10 - i)
	}
	primeiro := (soma * 10 % 11) % 10

	soma = 0
	for i := 0; i < 10; i++ {
		soma += digits[i] * (11 - i)
	}
	segundo := (soma * 10 % 11) % 10

	return digits[9] == primeiro && digits[10] == segundo
}
