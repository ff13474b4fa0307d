package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTaxRateDefault(t *testing.T) {
	v := &Voucher{}
	assert.Equal(t, 0.18, v.DeriveTaxRate(0.10))
}

func TestDeriveTaxRateExempt(t *testing.T) {
	v := &Voucher{Exempt: true}
	assert.Equal(t, 0.0, v.DeriveTaxRate(0.10))
}

func TestDeriveTaxRateUnaffected(t *testing.T) {
	v := &Voucher{Unaffected: true}
	assert.Equal(t, 0.0, v.DeriveTaxRate(0.10))
}

func TestDeriveTaxRateSpecial(t *testing.T) {
	v := &Voucher{SpecialRate: true}
	assert.Equal(t, 0.10, v.DeriveTaxRate(0.10))
}

func TestDeriveTaxRateExemptWinsOverSpecial(t *testing.T) {
	v := &Voucher{Exempt: true, SpecialRate: true}
	assert.Equal(t, 0.0, v.DeriveTaxRate(0.10))
}
