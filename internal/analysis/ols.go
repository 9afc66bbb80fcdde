package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Coefficient is one fitted parameter.
type Coefficient struct {
	Name     string
	Estimate float64
	StdErr   float64
	T        float64
	P        float64
}

// OLSResult is an ordinary least squares fit.
type OLSResult struct {
	Coefficients []Coefficient

	N    int
	Rank int

	DFModel float64
	DFResid float64

	SSR       float64
	RSquared  float64
	AdjRSq    float64
	F         float64
	FPValue   float64
	LogLik    float64
	AIC       float64
	BIC       float64
	Condition float64
}

// FitOLS regresses y on x through the SVD pseudo-inverse, so a rank
// deficient design still yields the minimum-norm solution. x is expected to
// carry a constant column; R² is centred.
func FitOLS(x *mat.Dense, y []float64, names []string) (*OLSResult, error) {
	n, p := x.Dims()
	if n != len(y) || p != len(names) {
		return nil, fmt.Errorf("ols: design is %dx%d with %d responses and %d names", n, p, len(y), len(names))
	}
	if n == 0 {
		return nil, ErrNoObservations
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, fmt.Errorf("ols: svd did not converge")
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tol := float64(max(n, p)) * s[0] * 2.220446049250313e-16
	rank := 0
	inv := make([]float64, len(s))
	for i, sv := range s {
		if sv > tol {
			inv[i] = 1 / sv
			rank++
		}
	}

	// beta = V diag(inv) Uᵀ y
	uty := mat.NewVecDense(len(s), nil)
	uty.MulVec(u.T(), mat.NewVecDense(n, y))
	for i := range inv {
		uty.SetVec(i, uty.AtVec(i)*inv[i])
	}
	beta := mat.NewVecDense(p, nil)
	beta.MulVec(&v, uty)

	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(x, beta)
	ssr := 0.0
	for i := range y {
		r := y[i] - fitted.AtVec(i)
		ssr += r * r
	}
	mean := stat.Mean(y, nil)
	tss := 0.0
	for _, yi := range y {
		tss += (yi - mean) * (yi - mean)
	}

	res := &OLSResult{
		N:       n,
		Rank:    rank,
		DFModel: float64(rank - 1),
		DFResid: float64(n - rank),
		SSR:     ssr,
	}
	if rank > 0 {
		res.Condition = s[0] / s[rank-1]
	}

	// (XᵀX)⁺ = V diag(inv²) Vᵀ
	vs := mat.DenseCopyOf(&v)
	for j := range inv {
		for i := 0; i < p; i++ {
			vs.Set(i, j, vs.At(i, j)*inv[j]*inv[j])
		}
	}
	var xtxInv mat.Dense
	xtxInv.Mul(vs, v.T())

	sigma2 := math.NaN()
	if res.DFResid > 0 {
		sigma2 = ssr / res.DFResid
	}
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DFResid}
	for j := 0; j < p; j++ {
		c := Coefficient{Name: names[j], Estimate: beta.AtVec(j)}
		c.StdErr = math.Sqrt(sigma2 * xtxInv.At(j, j))
		c.T = c.Estimate / c.StdErr
		c.P = math.NaN()
		if res.DFResid > 0 && !math.IsNaN(c.T) && !math.IsInf(c.T, 0) {
			c.P = 2 * tdist.Survival(math.Abs(c.T))
		}
		res.Coefficients = append(res.Coefficients, c)
	}

	res.RSquared = 1 - ssr/tss
	res.AdjRSq = 1 - (float64(n-1)/res.DFResid)*(1-res.RSquared)
	res.F, res.FPValue = math.NaN(), math.NaN()
	if res.DFModel > 0 && res.DFResid > 0 {
		res.F = ((tss - ssr) / res.DFModel) / (ssr / res.DFResid)
		fd := distuv.F{D1: res.DFModel, D2: res.DFResid}
		res.FPValue = fd.Survival(res.F)
	}

	nf := float64(n)
	res.LogLik = -nf / 2 * (math.Log(2*math.Pi) + math.Log(ssr/nf) + 1)
	k := float64(rank)
	res.AIC = -2*res.LogLik + 2*k
	res.BIC = -2*res.LogLik + math.Log(nf)*k
	return res, nil
}

// Predict returns x·β.
func (r *OLSResult) Predict(x mat.Matrix) []float64 {
	n, p := x.Dims()
	beta := mat.NewVecDense(p, nil)
	for j, c := range r.Coefficients {
		beta.SetVec(j, c.Estimate)
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(x, beta)
	return out.RawVector().Data
}

// RSquared is the coefficient of determination of pred against y, centred
// on the mean of y. It is NaN when y is constant.
func RSquared(y, pred []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(y, nil)
	var sse, sst float64
	for i := range y {
		sse += (y[i] - pred[i]) * (y[i] - pred[i])
		sst += (y[i] - mean) * (y[i] - mean)
	}
	if sst == 0 {
		return math.NaN()
	}
	return 1 - sse/sst
}
