package avatar

// SetScale stores the scale multiplier and, once loaded, applies
// base scale × v on all three axes. Zero and non-finite values become 1.
func (a *Avatar) SetScale(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scale = coerceScale(v)
	a.applyLocked()
}

// SetYOffset stores the vertical offset and, once loaded, sets the model's
// Y to base Y offset + v. Non-finite values become 0.
func (a *Avatar) SetYOffset(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.yOffset = coerceOffset(v)
	a.applyLocked()
}

// ScaleMultiplier returns the live scale multiplier.
func (a *Avatar) ScaleMultiplier() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scale
}

// YOffset returns the live vertical offset.
func (a *Avatar) YOffset() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.yOffset
}

// EffectiveScale returns the uniform scale currently on the model.
func (a *Avatar) EffectiveScale() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return 0, ErrNotLoaded
	}
	return a.root.Scale.X, nil
}

// EffectiveY returns the model's current vertical position.
func (a *Avatar) EffectiveY() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return 0, ErrNotLoaded
	}
	return a.root.Position.Y, nil
}
