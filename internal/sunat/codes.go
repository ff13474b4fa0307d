package sunat

// Tablas de traducción de códigos de SUNAT a descripciones legibles.
// Se usan solo para presentación, nunca para control de flujo.

var voucherStates = map[string]string{
	"0": "NO EXISTE",
	"1": "ACEPTADO",
	"2": "ANULADO",
	"3": "AUTORIZADO",
	"4": "NO AUTORIZADO",
}

var rucStates = map[string]string{
	"00": "ACTIVO",
	"01": "BAJA PROVISIONAL",
	"02": "BAJA PROVISIONAL DE OFICIO",
	"03": "SUSPENSION TEMPORAL",
	"10": "BAJA DEFINITIVA",
	"11": "BAJA DE OFICIO",
	"22": "INHABILITADO - VENTA UNICA",
}

var domiciliaryConditions = map[string]string{
	"00": "HABIDO",
	"09": "PENDIENTE",
	"11": "POR VERIFICAR",
	"12": "NO HABIDO",
	"20": "NO HALLADO",
}

// VoucherStateDescription traduce el código de estado del comprobante
func VoucherStateDescription(code string) string {
	if desc, ok := voucherStates[code]; ok {
		return desc
	}
	return "DESCONOCIDO"
}

// RUCStateDescription traduce el código de estado del RUC
func RUCStateDescription(code string) string {
	if desc, ok := rucStates[code]; ok {
		return desc
	}
	return "DESCONOCIDO"
}

// DomiciliaryConditionDescription traduce la condición domiciliaria del RUC
func DomiciliaryConditionDescription(code string) string {
	if desc, ok := domiciliaryConditions[code]; ok {
		return desc
	}
	return "DESCONOCIDO"
}
